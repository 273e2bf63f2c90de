package textframe

import "math"

// Point represents a 2D point or vector.
type Point struct {
	X, Y float64
}

// Pt is a convenience function to create a Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns the sum of two points (vector addition).
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns the difference of two points (vector subtraction).
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Mul returns the point scaled by a scalar.
func (p Point) Mul(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// Rect is an axis-aligned rectangle with float64 coordinates.
// A rect is well-formed when MinX <= MaxX and MinY <= MaxY.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// RectWH creates a rectangle from an origin and a size.
func RectWH(x, y, w, h float64) Rect {
	return Rect{MinX: x, MinY: y, MaxX: x + w, MaxY: y + h}
}

// Width returns the rectangle width.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the rectangle height.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Min returns the top-left corner.
func (r Rect) Min() Point { return Point{X: r.MinX, Y: r.MinY} }

// IsEmpty returns true if the rectangle encloses no area.
func (r Rect) IsEmpty() bool {
	return r.MinX >= r.MaxX || r.MinY >= r.MaxY
}

// Intersects returns true if r and q share any area.
func (r Rect) Intersects(q Rect) bool {
	return r.MinX < q.MaxX && q.MinX < r.MaxX &&
		r.MinY < q.MaxY && q.MinY < r.MaxY
}

// Intersect returns the intersection of r and q.
// Returns the zero Rect if they do not overlap.
func (r Rect) Intersect(q Rect) Rect {
	out := Rect{
		MinX: math.Max(r.MinX, q.MinX),
		MinY: math.Max(r.MinY, q.MinY),
		MaxX: math.Min(r.MaxX, q.MaxX),
		MaxY: math.Min(r.MaxY, q.MaxY),
	}
	if out.IsEmpty() {
		return Rect{}
	}
	return out
}

// Union returns the smallest rectangle containing both r and q.
func (r Rect) Union(q Rect) Rect {
	if r.IsEmpty() {
		return q
	}
	if q.IsEmpty() {
		return r
	}
	return Rect{
		MinX: math.Min(r.MinX, q.MinX),
		MinY: math.Min(r.MinY, q.MinY),
		MaxX: math.Max(r.MaxX, q.MaxX),
		MaxY: math.Max(r.MaxY, q.MaxY),
	}
}

// Inflate returns the rectangle grown by d on every side.
// Negative d shrinks the rectangle.
func (r Rect) Inflate(d float64) Rect {
	return Rect{MinX: r.MinX - d, MinY: r.MinY - d, MaxX: r.MaxX + d, MaxY: r.MaxY + d}
}

// Translate returns the rectangle moved by the vector p.
func (r Rect) Translate(p Point) Rect {
	return Rect{MinX: r.MinX + p.X, MinY: r.MinY + p.Y, MaxX: r.MaxX + p.X, MaxY: r.MaxY + p.Y}
}
