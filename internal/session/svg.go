package session

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"polyevolve/internal/model"
)

const (
	svgNamespace   = "http://www.w3.org/2000/svg"
	xlinkNamespace = "http://www.w3.org/1999/xlink"
)

type svgDocument struct {
	XMLName  xml.Name           `xml:"svg"`
	Xmlns    string             `xml:"xmlns,attr"`
	Xlink    string             `xml:"xmlns:xlink,attr"`
	Width    int                `xml:"width,attr"`
	Height   int                `xml:"height,attr"`
	Polygons []model.SVGPolygon `xml:"polygon"`
}

// WriteSVG writes the best match as an SVG document, one polygon per shape
// in paint order. The best match is copied under the lock and encoded after
// it is released.
func (s *Session) WriteSVG(w io.Writer) error {
	best, ok := s.BestMatch()
	if !ok {
		return ErrNotSeeded
	}

	doc := svgDocument{
		Xmlns:    svgNamespace,
		Xlink:    xlinkNamespace,
		Width:    s.imageWidth,
		Height:   s.imageHeight,
		Polygons: make([]model.SVGPolygon, 0, len(best.Shapes)),
	}
	for _, shape := range best.Shapes {
		doc.Polygons = append(doc.Polygons, shape.SVG())
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func (s *Session) SVG() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.WriteSVG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
