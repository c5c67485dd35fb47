package plugin

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"

	"polyevolve/internal/model"
	"polyevolve/internal/render"
)

var ErrNoTarget = errors.New("task has no target image")

// Background is the canvas color genomes are rendered over.
var Background = color.NRGBA{A: 255}

// frame is the target-derived state an evaluator prepares in Initialize.
// A frame is never modified after it is published, so Divergence may run
// while Initialize replaces it.
type frame struct {
	width  int
	height int
	luma   []float64
}

// RGBEvaluator measures the mean squared per-channel error between the
// rendered genome and the target, normalized to [0, 1]. With Smooth set it
// uses absolute error instead, which penalizes large local errors less.
type RGBEvaluator struct {
	Smooth bool

	frame atomic.Pointer[frame]
}

func (*RGBEvaluator) Tag() string { return TagRGB }

func (e *RGBEvaluator) MarshalBinary() ([]byte, error) {
	if e.Smooth {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func (e *RGBEvaluator) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return fmt.Errorf("%w: got=%d want=1", errStateLength, len(data))
	}
	e.Smooth = data[0] != 0
	return nil
}

func (e *RGBEvaluator) Initialize(task Task) error {
	if task.Target() == nil {
		return ErrNoTarget
	}
	e.frame.Store(&frame{width: task.ImageWidth(), height: task.ImageHeight()})
	return nil
}

func (e *RGBEvaluator) Divergence(canvas *image.RGBA, dna model.DNA, task Task, limit float64) float64 {
	f := e.frame.Load()
	if f == nil {
		return 0
	}
	render.Render(canvas, dna, Background)
	target := task.Target()

	maxPerPixel := 3.0 * 255 * 255
	if e.Smooth {
		maxPerPixel = 3.0 * 255
	}
	total := float64(f.width*f.height) * maxPerPixel
	if total == 0 {
		return 0
	}
	budget := limit * total

	var sum float64
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			got := canvas.RGBAAt(x, y)
			want := target.NRGBAAt(x, y)
			dr := float64(got.R) - float64(want.R)
			dg := float64(got.G) - float64(want.G)
			db := float64(got.B) - float64(want.B)
			if e.Smooth {
				sum += abs(dr) + abs(dg) + abs(db)
			} else {
				sum += dr*dr + dg*dg + db*db
			}
		}
		if sum > budget {
			break
		}
	}
	return sum / total
}

// LumaEvaluator compares luminance only.
type LumaEvaluator struct {
	frame atomic.Pointer[frame]
}

func (*LumaEvaluator) Tag() string { return TagLuma }

func (*LumaEvaluator) MarshalBinary() ([]byte, error) { return nil, nil }

func (*LumaEvaluator) UnmarshalBinary(data []byte) error {
	if len(data) != 0 {
		return fmt.Errorf("%w: got=%d want=0", errStateLength, len(data))
	}
	return nil
}

func (e *LumaEvaluator) Initialize(task Task) error {
	target := task.Target()
	if target == nil {
		return ErrNoTarget
	}
	f := &frame{width: task.ImageWidth(), height: task.ImageHeight()}
	f.luma = make([]float64, f.width*f.height)
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			c := target.NRGBAAt(x, y)
			f.luma[y*f.width+x] = luminance(c.R, c.G, c.B)
		}
	}
	e.frame.Store(f)
	return nil
}

func (e *LumaEvaluator) Divergence(canvas *image.RGBA, dna model.DNA, _ Task, limit float64) float64 {
	f := e.frame.Load()
	if f == nil {
		return 0
	}
	render.Render(canvas, dna, Background)
	total := float64(f.width*f.height) * 255 * 255
	if total == 0 {
		return 0
	}
	budget := limit * total

	var sum float64
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			c := canvas.RGBAAt(x, y)
			d := luminance(c.R, c.G, c.B) - f.luma[y*f.width+x]
			sum += d * d
		}
		if sum > budget {
			break
		}
	}
	return sum / total
}

func luminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
