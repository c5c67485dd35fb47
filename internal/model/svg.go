package model

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// SVGPolygon is the vector fragment for one shape.
type SVGPolygon struct {
	XMLName     xml.Name `xml:"polygon"`
	Points      string   `xml:"points,attr"`
	Fill        string   `xml:"fill,attr"`
	FillOpacity string   `xml:"fill-opacity,attr"`
}

func (s Shape) SVG() SVGPolygon {
	points := make([]string, 0, len(s.Points))
	for _, p := range s.Points {
		points = append(points, formatCoord(p.X)+","+formatCoord(p.Y))
	}
	return SVGPolygon{
		Points:      strings.Join(points, " "),
		Fill:        fmt.Sprintf("#%02x%02x%02x", s.Color.R, s.Color.G, s.Color.B),
		FillOpacity: strconv.FormatFloat(float64(s.Color.A)/255, 'f', 4, 64),
	}
}

func formatCoord(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}
