// Package render rasterizes genomes with golang.org/x/image/vector.
package render

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/vector"

	"polyevolve/internal/model"
)

// NewCanvas returns a scratch canvas of the given size.
func NewCanvas(width, height int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

// Render fills dst with background and paints shapes in genome order with
// source-over compositing, so later shapes land on top.
func Render(dst *image.RGBA, d model.DNA, background color.Color) {
	bounds := dst.Bounds()
	draw.Draw(dst, bounds, image.NewUniform(background), image.Point{}, draw.Src)

	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	for _, shape := range d.Shapes {
		if len(shape.Points) < 3 || shape.Color.A == 0 {
			continue
		}
		z.Reset(bounds.Dx(), bounds.Dy())
		z.DrawOp = draw.Over
		first := shape.Points[0]
		z.MoveTo(first.X, first.Y)
		for _, p := range shape.Points[1:] {
			z.LineTo(p.X, p.Y)
		}
		z.ClosePath()
		z.Draw(dst, bounds, image.NewUniform(shape.Color), image.Point{})
	}
}

// ToNRGBA converts any image into a non-premultiplied copy anchored at 0,0.
func ToNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
