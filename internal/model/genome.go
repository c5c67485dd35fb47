package model

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"polyevolve/internal/wire"
)

var (
	ErrShapeCount  = errors.New("shape count mismatch")
	ErrVertexCount = errors.New("vertex count mismatch")
)

type Point struct {
	X float32
	Y float32
}

// Shape is a filled polygon. Color alpha controls how the shape composites
// over the shapes before it.
type Shape struct {
	Color  color.NRGBA
	Points []Point
}

func (s Shape) Clone() Shape {
	return Shape{
		Color:  s.Color,
		Points: append([]Point(nil), s.Points...),
	}
}

func (s Shape) Equal(other Shape) bool {
	if s.Color != other.Color || len(s.Points) != len(other.Points) {
		return false
	}
	for i := range s.Points {
		if s.Points[i] != other.Points[i] {
			return false
		}
	}
	return true
}

// DNA is a candidate solution: shapes in paint order plus its divergence
// from the target image (lower is better).
type DNA struct {
	Shapes     []Shape
	Divergence float64
}

func (d DNA) Clone() DNA {
	shapes := make([]Shape, len(d.Shapes))
	for i, shape := range d.Shapes {
		shapes[i] = shape.Clone()
	}
	return DNA{Shapes: shapes, Divergence: d.Divergence}
}

// Equal compares shapes and divergence.
func (d DNA) Equal(other DNA) bool {
	if d.Divergence != other.Divergence || len(d.Shapes) != len(other.Shapes) {
		return false
	}
	for i := range d.Shapes {
		if !d.Shapes[i].Equal(other.Shapes[i]) {
			return false
		}
	}
	return true
}

// Validate checks the genome against a session's structural budget.
func (d DNA) Validate(shapes, vertices int) error {
	if len(d.Shapes) != shapes {
		return fmt.Errorf("%w: got=%d want=%d", ErrShapeCount, len(d.Shapes), shapes)
	}
	for i, shape := range d.Shapes {
		if len(shape.Points) != vertices {
			return fmt.Errorf("%w: shape %d got=%d want=%d", ErrVertexCount, i, len(shape.Points), vertices)
		}
	}
	return nil
}

// EncodeDNA writes the divergence, then per shape an ARGB color and its
// vertices. Counts are not written; the reader supplies them.
func EncodeDNA(w *wire.Writer, d DNA) {
	w.Float64(d.Divergence)
	for _, shape := range d.Shapes {
		w.Int32(int32(argb(shape.Color)))
		for _, p := range shape.Points {
			w.Float32(p.X)
			w.Float32(p.Y)
		}
	}
}

func DecodeDNA(r *wire.Reader, shapes, vertices int) (DNA, error) {
	if shapes < 0 || vertices < 0 {
		return DNA{}, fmt.Errorf("invalid genome budget: shapes=%d vertices=%d", shapes, vertices)
	}
	d := DNA{Divergence: r.Float64()}
	d.Shapes = make([]Shape, 0, shapes)
	for i := 0; i < shapes && r.Err() == nil; i++ {
		shape := Shape{
			Color:  fromARGB(uint32(r.Int32())),
			Points: make([]Point, vertices),
		}
		for j := range shape.Points {
			shape.Points[j] = Point{X: r.Float32(), Y: r.Float32()}
		}
		d.Shapes = append(d.Shapes, shape)
	}
	if err := r.Err(); err != nil {
		return DNA{}, fmt.Errorf("decode dna: %w", err)
	}
	return d, nil
}

func (d DNA) WriteBinary(w io.Writer) error {
	ww := wire.NewWriter(w)
	EncodeDNA(ww, d)
	return ww.Err()
}

func ReadDNA(r io.Reader, shapes, vertices int) (DNA, error) {
	return DecodeDNA(wire.NewReader(r), shapes, vertices)
}

func argb(c color.NRGBA) uint32 {
	return uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func fromARGB(v uint32) color.NRGBA {
	return color.NRGBA{
		A: uint8(v >> 24),
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}
}
