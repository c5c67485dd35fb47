package model

import (
	"bytes"
	"encoding/xml"
	"errors"
	"image/color"
	"io"
	"testing"
)

func sampleDNA() DNA {
	return DNA{
		Divergence: 0.125,
		Shapes: []Shape{
			{Color: color.NRGBA{R: 255, G: 0, B: 0, A: 128}, Points: []Point{{0, 0}, {10, 0}, {5, 8.5}}},
			{Color: color.NRGBA{R: 1, G: 2, B: 3, A: 255}, Points: []Point{{1, 1}, {2, 2}, {3, 1}}},
		},
	}
}

func TestDNABinaryRoundTrip(t *testing.T) {
	original := sampleDNA()
	var buf bytes.Buffer
	if err := original.WriteBinary(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	// divergence + 2 shapes * (color + 3 points * 2 floats)
	if want := 8 + 2*(4+3*8); buf.Len() != want {
		t.Fatalf("unexpected encoded size: got=%d want=%d", buf.Len(), want)
	}

	decoded, err := ReadDNA(&buf, 2, 3)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !decoded.Equal(original) {
		t.Fatalf("round trip mismatch: got=%+v want=%+v", decoded, original)
	}
}

func TestReadDNATruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := sampleDNA().WriteBinary(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := ReadDNA(bytes.NewReader(buf.Bytes()[:buf.Len()-3]), 2, 3)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
}

func TestDNAValidate(t *testing.T) {
	d := sampleDNA()
	if err := d.Validate(2, 3); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := d.Validate(3, 3); !errors.Is(err, ErrShapeCount) {
		t.Fatalf("expected shape count error, got %v", err)
	}
	if err := d.Validate(2, 4); !errors.Is(err, ErrVertexCount) {
		t.Fatalf("expected vertex count error, got %v", err)
	}
}

func TestDNACloneIsDeep(t *testing.T) {
	original := sampleDNA()
	clone := original.Clone()
	clone.Shapes[0].Points[0].X = 99
	clone.Shapes[1].Color.R = 200
	if original.Shapes[0].Points[0].X != 0 || original.Shapes[1].Color.R != 1 {
		t.Fatalf("clone shares memory with original: %+v", original)
	}
}

func TestShapeSVG(t *testing.T) {
	shape := sampleDNA().Shapes[0]
	out, err := xml.Marshal(shape.SVG())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `<polygon points="0,0 10,0 5,8.5" fill="#ff0000" fill-opacity="0.5020"></polygon>`
	if string(out) != want {
		t.Fatalf("unexpected svg fragment:\n got=%s\nwant=%s", out, want)
	}
}
