package easel

// MergeEvent composites a snapshot of another buffer's pixels into the
// owning buffer at the event's opacity and paint mode.
//
// The snapshot is captured when the event is committed: merging is an
// action taken at a point in the event history, so later edits to the
// source buffer must not change what an already-committed merge painted.
type MergeEvent struct {
	eventHeader

	sourceID int64
	opacity  float64

	// snapshot holds the source buffer's pixels at commit time. It is
	// nil for freshly parsed events until the Picture resolves it
	// during replay.
	snapshot *Pixmap
}

// NewMergeEvent creates a merge of the buffer with the given id.
func NewMergeEvent(sid, eid int64, sourceID int64, opacity float64) *MergeEvent {
	return &MergeEvent{
		eventHeader: eventHeader{sid: sid, eid: eid, mode: ModeNormal},
		sourceID:    sourceID,
		opacity:     clamp01(opacity),
	}
}

// SourceID returns the id of the buffer whose pixels are merged.
func (e *MergeEvent) SourceID() int64 { return e.sourceID }

// Snapshot returns the captured source pixels, or nil if the source has
// not been resolved yet.
func (e *MergeEvent) Snapshot() *Pixmap { return e.snapshot }

// SetSnapshot captures the source pixels. The Picture calls this once
// when the event is committed or replayed from a serialized form.
func (e *MergeEvent) SetSnapshot(p *Pixmap) { e.snapshot = p }

// BoundingBox implements Event. A merge covers whatever surface it is
// clipped to.
func (e *MergeEvent) BoundingBox() Rect { return Boundless() }

// Scale implements Event. The snapshot is already in bitmap pixels.
func (e *MergeEvent) Scale(float64) {}

// PaintColor implements Event.
func (e *MergeEvent) PaintColor() RGBA { return White }

// Opacity implements Event.
func (e *MergeEvent) Opacity() float64 { return e.opacity }

// Kind implements Event.
func (e *MergeEvent) Kind() string { return "merge" }

// Tokens implements Event.
func (e *MergeEvent) Tokens() []string {
	t := make([]string, 0, 7)
	t = append(t, e.Kind())
	t = appendHeaderTokens(t, &e.eventHeader)
	t = append(t, formatInt(e.sourceID), formatFloat(e.opacity))
	return t
}
