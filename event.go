package easel

// Event is one immutable user drawing action. Events carry a session
// identity (session id plus per-session monotonic event id) so that
// collaborating sessions can interleave, look up, undo, and remove each
// other's events without renumbering.
//
// An event is owned by exactly one Buffer at a time. The only fields
// that change after creation are the undone flag and the one-time
// coordinate scaling a Picture applies before committing the event.
//
// The concrete kinds are [BrushEvent], [FillEvent], and [MergeEvent].
type Event interface {
	// Sid returns the authoring session's id.
	Sid() int64

	// SessionEventID returns the per-session monotonic sequence number.
	// It is unique within a session and is the sort and tie-break key
	// for cross-session ordering.
	SessionEventID() int64

	// Mode returns the paint mode the event composites with.
	Mode() PaintMode

	// Undone reports whether the event is currently undone. Undone
	// events stay in their buffer's sequence but are skipped on replay.
	Undone() bool

	// SetUndone toggles the undone flag.
	SetUndone(bool)

	// BoundingBox returns the invalidation rectangle in bitmap pixels.
	BoundingBox() Rect

	// Scale multiplies the event's coordinate payload by s. A Picture
	// calls this exactly once, before delegating the event to a buffer.
	Scale(s float64)

	// PaintColor returns the color the rasterized mask is composited
	// with. Kinds without an intrinsic color return White.
	PaintColor() RGBA

	// Opacity returns the event's overall opacity in [0, 1].
	Opacity() float64

	// Kind returns the serialization tag ("draw", "fill", "merge").
	Kind() string

	// Tokens returns the serialized token line, starting with Kind.
	Tokens() []string
}

// eventHeader carries the identity fields shared by every event kind.
type eventHeader struct {
	sid    int64
	eid    int64
	mode   PaintMode
	undone bool
}

func (h *eventHeader) Sid() int64            { return h.sid }
func (h *eventHeader) SessionEventID() int64 { return h.eid }
func (h *eventHeader) Mode() PaintMode       { return h.mode }
func (h *eventHeader) Undone() bool          { return h.undone }
func (h *eventHeader) SetUndone(u bool)      { h.undone = u }

// SetPaintMode changes how the event composites into its buffer. Set
// it before the event is pushed; pushed events are immutable.
func (h *eventHeader) SetPaintMode(m PaintMode) { h.mode = m }
