package geometry

import (
	"fmt"
	"math"
)

const (
	// NodeRadius is the distance from a node center at which connectors start and end
	NodeRadius = 56.0

	// ControlOffset is the horizontal offset of the curve control points
	ControlOffset = 50.0

	// Node half extents, used to turn a top-left position into a center
	nodeHalfWidth  = 72.0
	nodeHalfHeight = 48.0
)

// Point is a pixel coordinate on the canvas
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Path is a cubic Bezier curve between two nodes
type Path struct {
	Start    Point
	Control1 Point
	Control2 Point
	End      Point
}

// NodeCenter returns the center of a node whose top-left corner is at pos
func NodeCenter(pos Point) Point {
	return Point{X: pos.X + nodeHalfWidth, Y: pos.Y + nodeHalfHeight}
}

// ConnectorPath computes the curve joining two node centers.
// Endpoints sit on the node circles (offset by radius along the line between
// the centers) so the curve never overlaps the nodes themselves.
// Returns false when the centers coincide, as the direction is undefined.
func ConnectorPath(from, to Point, radius float64) (Path, bool) {
	if from == to {
		return Path{}, false
	}

	angle := math.Atan2(to.Y-from.Y, to.X-from.X)
	dx := radius * math.Cos(angle)
	dy := radius * math.Sin(angle)

	start := Point{X: from.X + dx, Y: from.Y + dy}
	end := Point{X: to.X - dx, Y: to.Y - dy}

	return Path{
		Start:    start,
		Control1: Point{X: start.X + ControlOffset, Y: start.Y},
		Control2: Point{X: end.X - ControlOffset, Y: end.Y},
		End:      end,
	}, true
}

// SVG renders the path as SVG path data
func (p Path) SVG() string {
	return fmt.Sprintf("M %s,%s C %s,%s %s,%s %s,%s",
		num(p.Start.X), num(p.Start.Y),
		num(p.Control1.X), num(p.Control1.Y),
		num(p.Control2.X), num(p.Control2.Y),
		num(p.End.X), num(p.End.Y))
}

func num(f float64) string {
	return fmt.Sprintf("%g", f)
}

// Rect is an axis-aligned rectangle
type Rect struct {
	Min Point
	Max Point
}

// Width of the rectangle
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height of the rectangle
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Center of the rectangle
func (r Rect) Center() Point {
	return Point{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}

// Bounds returns the smallest rectangle containing all points.
// The second return value is false when points is empty.
func Bounds(points []Point) (Rect, bool) {
	if len(points) == 0 {
		return Rect{}, false
	}
	r := Rect{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		r.Min.X = math.Min(r.Min.X, p.X)
		r.Min.Y = math.Min(r.Min.Y, p.Y)
		r.Max.X = math.Max(r.Max.X, p.X)
		r.Max.Y = math.Max(r.Max.Y, p.Y)
	}
	return r, true
}
