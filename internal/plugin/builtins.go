package plugin

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"math/rand"

	"polyevolve/internal/model"
)

const (
	TagSegmented = "segmented"
	TagHard      = "hard"
	TagSoft      = "soft"
	TagRGB       = "rgb"
	TagLuma      = "luma"
)

var errStateLength = errors.New("unexpected plugin state length")

func registerBuiltins() {
	MustRegister(Spec{Tag: TagSegmented, Role: RoleInitializer, New: func() Module {
		return &SegmentedInitializer{Color: color.NRGBA{A: 255}}
	}})
	MustRegister(Spec{Tag: TagHard, Role: RoleMutator, New: func() Module { return &HardMutator{} }})
	MustRegister(Spec{Tag: TagSoft, Role: RoleMutator, New: func() Module { return NewSoftMutator() }})
	MustRegister(Spec{Tag: TagRGB, Role: RoleEvaluator, New: func() Module { return &RGBEvaluator{} }})
	MustRegister(Spec{Tag: TagLuma, Role: RoleEvaluator, New: func() Module { return &LumaEvaluator{} }})
}

// SegmentedInitializer splits the image into a grid with one cell per shape
// and places each shape's vertices at random inside its cell.
type SegmentedInitializer struct {
	Color color.NRGBA
}

func (*SegmentedInitializer) Tag() string { return TagSegmented }

func (i *SegmentedInitializer) MarshalBinary() ([]byte, error) {
	return []byte{i.Color.A, i.Color.R, i.Color.G, i.Color.B}, nil
}

func (i *SegmentedInitializer) UnmarshalBinary(data []byte) error {
	if len(data) != 4 {
		return fmt.Errorf("%w: got=%d want=4", errStateLength, len(data))
	}
	i.Color = color.NRGBA{A: data[0], R: data[1], G: data[2], B: data[3]}
	return nil
}

func (i *SegmentedInitializer) Initialize(rng *rand.Rand, task Task) model.DNA {
	shapes := task.Shapes()
	cols := int(math.Ceil(math.Sqrt(float64(shapes))))
	if cols < 1 {
		cols = 1
	}
	rows := (shapes + cols - 1) / cols
	if rows < 1 {
		rows = 1
	}
	cellW := float32(task.ImageWidth()) / float32(cols)
	cellH := float32(task.ImageHeight()) / float32(rows)

	dna := model.DNA{Shapes: make([]model.Shape, shapes), Divergence: math.MaxFloat64}
	for s := range dna.Shapes {
		x0 := float32(s%cols) * cellW
		y0 := float32(s/cols) * cellH
		points := make([]model.Point, task.Vertices())
		for p := range points {
			points[p] = model.Point{
				X: x0 + rng.Float32()*cellW,
				Y: y0 + rng.Float32()*cellH,
			}
		}
		dna.Shapes[s] = model.Shape{Color: i.Color, Points: points}
	}
	return dna
}
