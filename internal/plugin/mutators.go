package plugin

import (
	"encoding/binary"
	"fmt"
	"image/color"
	"math"
	"math/rand"

	"polyevolve/internal/model"
	"polyevolve/internal/mutation"
)

// HardMutator replaces shapes, colors or points wholesale with random values.
type HardMutator struct{}

func (*HardMutator) Tag() string { return TagHard }

func (*HardMutator) MarshalBinary() ([]byte, error) { return nil, nil }

func (*HardMutator) UnmarshalBinary(data []byte) error {
	if len(data) != 0 {
		return fmt.Errorf("%w: got=%d want=0", errStateLength, len(data))
	}
	return nil
}

var hardKinds = []mutation.Kind{
	mutation.ReplaceShape,
	mutation.ReplaceColor,
	mutation.ReplacePoint,
	mutation.ReplacePoints,
	mutation.SwapShapes,
}

func (*HardMutator) Mutate(rng *rand.Rand, dna model.DNA, task Task) (model.DNA, mutation.Mutation) {
	mutated := dna.Clone()
	m := mutation.Mutation{Kind: hardKinds[rng.Intn(len(hardKinds))], Point: -1}
	if len(mutated.Shapes) == 0 {
		return mutated, m
	}
	m.Shape = rng.Intn(len(mutated.Shapes))
	shape := &mutated.Shapes[m.Shape]

	switch m.Kind {
	case mutation.ReplaceShape:
		shape.Color = randomColor(rng)
		for i := range shape.Points {
			shape.Points[i] = randomPoint(rng, task)
		}
	case mutation.ReplaceColor:
		shape.Color = randomColor(rng)
	case mutation.ReplacePoint:
		if len(shape.Points) > 0 {
			m.Point = rng.Intn(len(shape.Points))
			shape.Points[m.Point] = randomPoint(rng, task)
		}
	case mutation.ReplacePoints:
		for i := range shape.Points {
			shape.Points[i] = randomPoint(rng, task)
		}
	case mutation.SwapShapes:
		swapShapes(rng, mutated.Shapes, m.Shape)
	}
	return mutated, m
}

// SoftMutator nudges existing shapes by bounded amounts.
type SoftMutator struct {
	MaxColorDelta uint8
	MaxPosDelta   float32
	MaxScaleDelta float32
}

func NewSoftMutator() *SoftMutator {
	return &SoftMutator{MaxColorDelta: 12, MaxPosDelta: 12, MaxScaleDelta: 0.1}
}

func (*SoftMutator) Tag() string { return TagSoft }

func (s *SoftMutator) MarshalBinary() ([]byte, error) {
	data := make([]byte, 9)
	data[0] = s.MaxColorDelta
	binary.LittleEndian.PutUint32(data[1:5], math.Float32bits(s.MaxPosDelta))
	binary.LittleEndian.PutUint32(data[5:9], math.Float32bits(s.MaxScaleDelta))
	return data, nil
}

func (s *SoftMutator) UnmarshalBinary(data []byte) error {
	if len(data) != 9 {
		return fmt.Errorf("%w: got=%d want=9", errStateLength, len(data))
	}
	s.MaxColorDelta = data[0]
	s.MaxPosDelta = math.Float32frombits(binary.LittleEndian.Uint32(data[1:5]))
	s.MaxScaleDelta = math.Float32frombits(binary.LittleEndian.Uint32(data[5:9]))
	return nil
}

var softKinds = []mutation.Kind{
	mutation.AdjustColor,
	mutation.AdjustPoint,
	mutation.AdjustPoints,
	mutation.Translate,
	mutation.Scale,
	mutation.SwapShapes,
}

func (s *SoftMutator) Mutate(rng *rand.Rand, dna model.DNA, task Task) (model.DNA, mutation.Mutation) {
	mutated := dna.Clone()
	m := mutation.Mutation{Kind: softKinds[rng.Intn(len(softKinds))], Point: -1}
	if len(mutated.Shapes) == 0 {
		return mutated, m
	}
	m.Shape = rng.Intn(len(mutated.Shapes))
	shape := &mutated.Shapes[m.Shape]

	switch m.Kind {
	case mutation.AdjustColor:
		shape.Color = s.adjustColor(rng, shape.Color)
	case mutation.AdjustPoint:
		if len(shape.Points) > 0 {
			m.Point = rng.Intn(len(shape.Points))
			shape.Points[m.Point] = s.adjustPoint(rng, shape.Points[m.Point], task)
		}
	case mutation.AdjustPoints:
		for i := range shape.Points {
			shape.Points[i] = s.adjustPoint(rng, shape.Points[i], task)
		}
	case mutation.Translate:
		dx := jitter(rng, s.MaxPosDelta)
		dy := jitter(rng, s.MaxPosDelta)
		for i, p := range shape.Points {
			shape.Points[i] = clampPoint(model.Point{X: p.X + dx, Y: p.Y + dy}, task)
		}
	case mutation.Scale:
		scaleShape(shape, 1+jitter(rng, s.MaxScaleDelta), task)
	case mutation.SwapShapes:
		swapShapes(rng, mutated.Shapes, m.Shape)
	}
	return mutated, m
}

func (s *SoftMutator) adjustColor(rng *rand.Rand, c color.NRGBA) color.NRGBA {
	delta := rng.Intn(2*int(s.MaxColorDelta)+1) - int(s.MaxColorDelta)
	switch rng.Intn(4) {
	case 0:
		c.R = clampByte(int(c.R) + delta)
	case 1:
		c.G = clampByte(int(c.G) + delta)
	case 2:
		c.B = clampByte(int(c.B) + delta)
	default:
		c.A = clampByte(int(c.A) + delta)
	}
	return c
}

func (s *SoftMutator) adjustPoint(rng *rand.Rand, p model.Point, task Task) model.Point {
	return clampPoint(model.Point{
		X: p.X + jitter(rng, s.MaxPosDelta),
		Y: p.Y + jitter(rng, s.MaxPosDelta),
	}, task)
}

func scaleShape(shape *model.Shape, factor float32, task Task) {
	if len(shape.Points) == 0 {
		return
	}
	var cx, cy float32
	for _, p := range shape.Points {
		cx += p.X
		cy += p.Y
	}
	cx /= float32(len(shape.Points))
	cy /= float32(len(shape.Points))
	for i, p := range shape.Points {
		shape.Points[i] = clampPoint(model.Point{
			X: cx + (p.X-cx)*factor,
			Y: cy + (p.Y-cy)*factor,
		}, task)
	}
}

func swapShapes(rng *rand.Rand, shapes []model.Shape, i int) {
	if len(shapes) < 2 {
		return
	}
	j := rng.Intn(len(shapes) - 1)
	if j >= i {
		j++
	}
	shapes[i], shapes[j] = shapes[j], shapes[i]
}

func randomColor(rng *rand.Rand) color.NRGBA {
	return color.NRGBA{
		R: uint8(rng.Intn(256)),
		G: uint8(rng.Intn(256)),
		B: uint8(rng.Intn(256)),
		A: uint8(rng.Intn(256)),
	}
}

func randomPoint(rng *rand.Rand, task Task) model.Point {
	return model.Point{
		X: rng.Float32() * float32(task.ImageWidth()),
		Y: rng.Float32() * float32(task.ImageHeight()),
	}
}

func jitter(rng *rand.Rand, limit float32) float32 {
	return (rng.Float32()*2 - 1) * limit
}

func clampPoint(p model.Point, task Task) model.Point {
	return model.Point{
		X: clampFloat(p.X, 0, float32(task.ImageWidth())),
		Y: clampFloat(p.Y, 0, float32(task.ImageHeight())),
	}
}

func clampFloat(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
