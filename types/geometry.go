package types

import (
	"encoding/json"
	"fmt"
	"math"
)

// coordinateScale converts millimetres to the integer 1/1000 mm units used on the wire.
const coordinateScale = 1000

func toWire(mm float64) int64 {
	return int64(math.Round(mm * coordinateScale))
}

func fromWire(v int64) float64 {
	return float64(v) / coordinateScale
}

// Point2D is an in-plane vertex of a contour path, in millimetres.
type Point2D struct {
	X, Y float64
}

// Point3D is a discrete point of an ROI, in millimetres.
// On the wire it is [x, y, z] in 1/1000 mm.
type Point3D struct {
	X, Y, Z float64
}

// MarshalJSON encodes the point as scaled integers.
func (p Point3D) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int64{toWire(p.X), toWire(p.Y), toWire(p.Z)})
}

// UnmarshalJSON decodes a scaled [x, y, z] triple.
func (p *Point3D) UnmarshalJSON(data []byte) error {
	var raw []int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("point: expected 3 coordinates, got %d", len(raw))
	}
	*p = Point3D{fromWire(raw[0]), fromWire(raw[1]), fromWire(raw[2])}
	return nil
}

// Path is a closed in-plane polygon. On the wire it is flattened to
// [x0, y0, x1, y1, ...] in 1/1000 mm.
type Path []Point2D

// MarshalJSON encodes the path as a flat list of scaled integers.
func (p Path) MarshalJSON() ([]byte, error) {
	flat := make([]int64, 0, 2*len(p))
	for _, v := range p {
		flat = append(flat, toWire(v.X), toWire(v.Y))
	}
	return json.Marshal(flat)
}

// UnmarshalJSON decodes a flat list of scaled integers.
func (p *Path) UnmarshalJSON(data []byte) error {
	var flat []int64
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("path: %w", err)
	}
	if len(flat)%2 != 0 {
		return fmt.Errorf("path: odd number of coordinates (%d)", len(flat))
	}
	out := make(Path, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		out = append(out, Point2D{fromWire(flat[i]), fromWire(flat[i+1])})
	}
	*p = out
	return nil
}

// Contour is the set of closed paths on a single imaging plane.
type Contour struct {
	// Position is the plane's coordinate on the perpendicular axis, in millimetres.
	Position float64
	Paths    []Path
}

type wireContour struct {
	Pos   int64  `json:"pos"`
	Paths []Path `json:"paths"`
}

// MarshalJSON encodes the contour with a scaled position.
func (c Contour) MarshalJSON() ([]byte, error) {
	paths := c.Paths
	if paths == nil {
		paths = []Path{}
	}
	return json.Marshal(wireContour{Pos: toWire(c.Position), Paths: paths})
}

// UnmarshalJSON decodes a contour with a scaled position.
func (c *Contour) UnmarshalJSON(data []byte) error {
	var w wireContour
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("contour: %w", err)
	}
	*c = Contour{Position: fromWire(w.Pos), Paths: w.Paths}
	return nil
}

// ROIData is the geometry of a region of interest: planar contours and/or discrete points.
type ROIData struct {
	Contours []Contour `json:"contours"`
	Points   []Point3D `json:"points"`
}

// IsEmpty reports whether the geometry has neither contours nor points.
func (d *ROIData) IsEmpty() bool {
	return d == nil || (len(d.Contours) == 0 && len(d.Points) == 0)
}

// MarshalJSON always writes both arrays so the server never sees null.
func (d ROIData) MarshalJSON() ([]byte, error) {
	type alias ROIData
	a := alias(d)
	if a.Contours == nil {
		a.Contours = []Contour{}
	}
	if a.Points == nil {
		a.Points = []Point3D{}
	}
	return json.Marshal(a)
}
