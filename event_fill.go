package easel

// FillEvent covers the whole bitmap with a solid color at the event's
// opacity and paint mode.
type FillEvent struct {
	eventHeader

	color   RGBA
	opacity float64
}

// NewFillEvent creates a full-bitmap fill.
func NewFillEvent(sid, eid int64, c RGBA, opacity float64) *FillEvent {
	return &FillEvent{
		eventHeader: eventHeader{sid: sid, eid: eid, mode: ModeNormal},
		color:       c,
		opacity:     clamp01(opacity),
	}
}

// BoundingBox implements Event. A fill covers whatever surface it is
// clipped to.
func (e *FillEvent) BoundingBox() Rect { return Boundless() }

// Scale implements Event. Fills have no coordinate payload.
func (e *FillEvent) Scale(float64) {}

// PaintColor implements Event.
func (e *FillEvent) PaintColor() RGBA { return e.color }

// Opacity implements Event.
func (e *FillEvent) Opacity() float64 { return e.opacity }

// Kind implements Event.
func (e *FillEvent) Kind() string { return "fill" }

// Tokens implements Event.
func (e *FillEvent) Tokens() []string {
	t := make([]string, 0, 10)
	t = append(t, e.Kind())
	t = appendHeaderTokens(t, &e.eventHeader)
	t = appendColorTokens(t, e.color)
	t = append(t, formatFloat(e.opacity))
	return t
}
