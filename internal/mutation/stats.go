package mutation

// Stats tracks attempts and cumulative divergence improvement per kind.
// Every kind is present from construction. Stats is not safe for concurrent
// use; the owning session serializes access.
type Stats struct {
	counts       map[Kind]int
	improvements map[Kind]float64
}

func NewStats() *Stats {
	s := &Stats{
		counts:       make(map[Kind]int, kindCount),
		improvements: make(map[Kind]float64, kindCount),
	}
	for _, k := range Kinds() {
		s.counts[k] = 0
		s.improvements[k] = 0
	}
	return s
}

func (s *Stats) Len() int {
	return len(s.counts)
}

// RecordAttempt counts one attempt of kind. Unknown kinds are ignored so the
// key domain never grows.
func (s *Stats) RecordAttempt(k Kind) {
	if !k.Valid() {
		return
	}
	s.counts[k]++
}

func (s *Stats) RecordImprovement(k Kind, delta float64) {
	if !k.Valid() {
		return
	}
	s.improvements[k] += delta
}

func (s *Stats) Count(k Kind) int {
	return s.counts[k]
}

func (s *Stats) Improvement(k Kind) float64 {
	return s.improvements[k]
}

// Set overwrites both values for k; used when restoring a snapshot.
func (s *Stats) Set(k Kind, count int, improvement float64) {
	if !k.Valid() {
		return
	}
	s.counts[k] = count
	s.improvements[k] = improvement
}

// Entry is one row of a statistics table.
type Entry struct {
	Kind        Kind    `json:"kind"`
	Count       int     `json:"count"`
	Improvement float64 `json:"improvement"`
}

// Entries returns a copy of the table in Kinds order.
func (s *Stats) Entries() []Entry {
	entries := make([]Entry, 0, kindCount)
	for _, k := range Kinds() {
		entries = append(entries, Entry{Kind: k, Count: s.counts[k], Improvement: s.improvements[k]})
	}
	return entries
}

func (s *Stats) Clone() *Stats {
	clone := NewStats()
	for k, v := range s.counts {
		clone.counts[k] = v
	}
	for k, v := range s.improvements {
		clone.improvements[k] = v
	}
	return clone
}
