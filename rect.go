package easel

import "math"

// Rect is an axis-aligned rectangle in bitmap pixels. The region covers
// pixels [X0, X1) x [Y0, Y1), half-open like image.Rectangle.
//
// Rects are used for event bounding boxes and rasterizer clips.
type Rect struct {
	X0, Y0, X1, Y1 int
}

// boundlessExtent marks a rect that covers any surface it is clipped to.
// Fill and merge events use it because their footprint depends on the
// surface size, which the event does not know.
const boundlessExtent = 1 << 30

// Boundless returns a rect that covers every surface once clipped.
func Boundless() Rect {
	return Rect{0, 0, boundlessExtent, boundlessExtent}
}

// SurfaceRect returns the rect covering a w x h surface.
func SurfaceRect(w, h int) Rect {
	return Rect{0, 0, w, h}
}

// Empty reports whether the rect contains no pixels.
func (r Rect) Empty() bool {
	return r.X0 >= r.X1 || r.Y0 >= r.Y1
}

// Width returns the horizontal extent in pixels.
func (r Rect) Width() int {
	if r.Empty() {
		return 0
	}
	return r.X1 - r.X0
}

// Height returns the vertical extent in pixels.
func (r Rect) Height() int {
	if r.Empty() {
		return 0
	}
	return r.Y1 - r.Y0
}

// Contains reports whether the pixel (x, y) lies inside the rect.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X0 && x < r.X1 && y >= r.Y0 && y < r.Y1
}

// Union returns the smallest rect containing both r and s.
func (r Rect) Union(s Rect) Rect {
	if r.Empty() {
		return s
	}
	if s.Empty() {
		return r
	}
	return Rect{
		X0: min(r.X0, s.X0),
		Y0: min(r.Y0, s.Y0),
		X1: max(r.X1, s.X1),
		Y1: max(r.Y1, s.Y1),
	}
}

// Intersect returns the largest rect contained in both r and s.
// The result may be empty.
func (r Rect) Intersect(s Rect) Rect {
	out := Rect{
		X0: max(r.X0, s.X0),
		Y0: max(r.Y0, s.Y0),
		X1: min(r.X1, s.X1),
		Y1: min(r.Y1, s.Y1),
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// Scaled returns the rect with all edges multiplied by s, grown outward
// to whole pixels.
func (r Rect) Scaled(s float64) Rect {
	if r.Empty() {
		return Rect{}
	}
	if r.X1 >= boundlessExtent || r.Y1 >= boundlessExtent {
		return r
	}
	return Rect{
		X0: int(math.Floor(float64(r.X0) * s)),
		Y0: int(math.Floor(float64(r.Y0) * s)),
		X1: int(math.Ceil(float64(r.X1) * s)),
		Y1: int(math.Ceil(float64(r.Y1) * s)),
	}
}

// growToInclude extends the rect so the circle at (x, y) with the given
// radius fits inside it.
func (r Rect) growToInclude(x, y, radius float64) Rect {
	c := Rect{
		X0: int(math.Floor(x - radius)),
		Y0: int(math.Floor(y - radius)),
		X1: int(math.Ceil(x+radius)) + 1,
		Y1: int(math.Ceil(y+radius)) + 1,
	}
	return r.Union(c)
}
