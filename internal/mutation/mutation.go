package mutation

import (
	"fmt"
	"time"
)

// Kind enumerates the mutation operator categories tracked in session
// statistics. The declaration order is the snapshot order.
type Kind int

const (
	ReplaceShape Kind = iota
	ReplaceColor
	ReplacePoint
	ReplacePoints
	AdjustColor
	AdjustPoint
	AdjustPoints
	SwapShapes
	Translate
	Scale
	kindCount
)

var kindNames = [kindCount]string{
	ReplaceShape:  "ReplaceShape",
	ReplaceColor:  "ReplaceColor",
	ReplacePoint:  "ReplacePoint",
	ReplacePoints: "ReplacePoints",
	AdjustColor:   "AdjustColor",
	AdjustPoint:   "AdjustPoint",
	AdjustPoints:  "AdjustPoints",
	SwapShapes:    "SwapShapes",
	Translate:     "Translate",
	Scale:         "Scale",
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, kindCount)
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}

func (k Kind) Valid() bool {
	return k >= 0 && k < kindCount
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a stored name back to a kind. Names are case-sensitive.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}

// Mutation describes one applied mutation for the session's mutation log.
type Mutation struct {
	Kind        Kind
	Shape       int
	Point       int
	Improvement float64
	At          time.Time
}
