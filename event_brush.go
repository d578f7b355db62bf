package easel

// BrushEvent is a brush stroke: a polyline of coordinate triples
// (x, y, pressure) stamped with soft circular dabs. The stroke grows
// while it is the Picture's live event and becomes immutable once it is
// committed to a buffer.
type BrushEvent struct {
	eventHeader

	color    RGBA
	radius   float64
	opacity  float64
	hardness float64

	// coords holds x, y, pressure triples in bitmap pixels.
	coords []float64

	bbox Rect
}

// NewBrushEvent creates an empty brush stroke. Radius is the dab radius
// in picture pixels at full pressure, hardness in [0, 1] controls the
// edge falloff (1 = hard edge).
func NewBrushEvent(sid, eid int64, c RGBA, radius, opacity, hardness float64) *BrushEvent {
	return &BrushEvent{
		eventHeader: eventHeader{sid: sid, eid: eid, mode: ModeNormal},
		color:       c,
		radius:      radius,
		opacity:     clamp01(opacity),
		hardness:    clamp01(hardness),
	}
}

// NewEraseEvent creates an empty eraser stroke.
func NewEraseEvent(sid, eid int64, radius, opacity, hardness float64) *BrushEvent {
	ev := NewBrushEvent(sid, eid, White, radius, opacity, hardness)
	ev.mode = ModeEraser
	return ev
}

// AddCoord appends one stroke point and extends the bounding box.
func (e *BrushEvent) AddCoord(x, y, pressure float64) {
	e.coords = append(e.coords, x, y, clamp01(pressure))
	e.bbox = e.bbox.growToInclude(x, y, e.radius*clamp01(pressure))
}

// CoordCount returns the number of coordinate triples. It is the
// sub-step granularity for partial draws: a partial progress cutoff
// always rounds to a whole triple.
func (e *BrushEvent) CoordCount() int {
	return len(e.coords) / 3
}

// Coord returns the i-th coordinate triple.
func (e *BrushEvent) Coord(i int) (x, y, pressure float64) {
	return e.coords[i*3], e.coords[i*3+1], e.coords[i*3+2]
}

// Radius returns the full-pressure dab radius in bitmap pixels.
func (e *BrushEvent) Radius() float64 { return e.radius }

// Hardness returns the dab edge hardness in [0, 1].
func (e *BrushEvent) Hardness() float64 { return e.hardness }

// BoundingBox implements Event.
func (e *BrushEvent) BoundingBox() Rect { return e.bbox }

// Scale implements Event: coordinates and radius move from picture
// space to bitmap space.
func (e *BrushEvent) Scale(s float64) {
	if s == 1 {
		return
	}
	e.radius *= s
	for i := 0; i+2 < len(e.coords); i += 3 {
		e.coords[i] *= s
		e.coords[i+1] *= s
	}
	e.bbox = Rect{}
	for i := 0; i+2 < len(e.coords); i += 3 {
		e.bbox = e.bbox.growToInclude(e.coords[i], e.coords[i+1], e.radius*e.coords[i+2])
	}
}

// PaintColor implements Event.
func (e *BrushEvent) PaintColor() RGBA { return e.color }

// Opacity implements Event.
func (e *BrushEvent) Opacity() float64 { return e.opacity }

// Kind implements Event.
func (e *BrushEvent) Kind() string { return "draw" }

// Tokens implements Event.
func (e *BrushEvent) Tokens() []string {
	t := make([]string, 0, 11+len(e.coords))
	t = append(t, e.Kind())
	t = appendHeaderTokens(t, &e.eventHeader)
	t = appendColorTokens(t, e.color)
	t = append(t,
		formatFloat(e.radius),
		formatFloat(e.opacity),
		formatFloat(e.hardness),
	)
	for _, v := range e.coords {
		t = append(t, formatFloat(v))
	}
	return t
}
