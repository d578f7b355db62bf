package easel

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Picture-level errors.
var (
	// ErrNoCurrentBuffer is returned when an operation needs a current
	// buffer attachment but none is set.
	ErrNoCurrentBuffer = errors.New("easel: no current buffer attachment")

	// ErrUnknownBuffer is returned when a buffer id does not name any
	// buffer of the picture.
	ErrUnknownBuffer = errors.New("easel: unknown buffer id")

	// ErrDuplicateBuffer is returned when AddBuffer sees an id that is
	// already taken.
	ErrDuplicateBuffer = errors.New("easel: duplicate buffer id")
)

// Picture is the full editable document: an ordered stack of buffers
// (bottom to top in compositing order), one optional in-progress event
// rendered as a live overlay, and the backend everything rasterizes
// through.
//
// A Picture and everything it owns must be used from a single
// goroutine.
type Picture struct {
	id     string
	width  int
	height int
	scale  float64

	bitmapW int
	bitmapH int

	backend Backend
	buffers []*Buffer

	// currentBuffer is the attachment index the live event composites
	// over, -1 for none.
	currentBuffer int

	// currentEvent is the in-progress event. While live it rasterizes
	// into currentRasterizer and never touches a committed surface.
	currentEvent      Event
	currentRasterizer Rasterizer
	genericRasterizer Rasterizer

	// element is the displayable surface handed to the host.
	element *Pixmap

	animating bool
	anim      *animation
	scheduler FrameScheduler

	freed bool
}

// New constructs a Picture with fixed bounds, bitmap scale, and backend
// mode. The modes are tried in order; the first backend that both
// initializes and passes its sanity check wins. When every mode fails,
// New returns nil and an error wrapping ErrNoBackend.
//
// currentBuffer is the initial attachment index, -1 for none.
func New(id string, width, height int, scale float64, modes []string, currentBuffer int) (*Picture, error) {
	if width <= 0 || height <= 0 || scale <= 0 {
		return nil, fmt.Errorf("easel: invalid picture bounds %dx%d @ %g", width, height, scale)
	}
	bw := int(math.Floor(float64(width) * scale))
	bh := int(math.Floor(float64(height) * scale))
	if bw < 1 {
		bw = 1
	}
	if bh < 1 {
		bh = 1
	}

	var firstErr error
	for _, mode := range modes {
		backend, err := openBackend(mode, bw, bh)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			Logger().Info("backend rejected",
				slog.String("picture", id),
				slog.String("backend", mode),
				slog.Any("err", err))
			continue
		}

		p := &Picture{
			id:            id,
			width:         width,
			height:        height,
			scale:         scale,
			bitmapW:       bw,
			bitmapH:       bh,
			backend:       backend,
			currentBuffer: -1,
			element:       NewPixmap(bw, bh),
		}
		p.currentRasterizer, err = backend.NewRasterizer(bw, bh)
		if err == nil {
			p.genericRasterizer, err = backend.NewRasterizer(bw, bh)
		}
		if err != nil {
			p.freeRasterizers()
			backend.Close()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if currentBuffer >= 0 {
			p.currentBuffer = currentBuffer
		}
		Logger().Info("picture ready",
			slog.String("picture", id),
			slog.String("backend", mode),
			slog.Int("w", bw), slog.Int("h", bh))
		return p, nil
	}

	if firstErr == nil {
		firstErr = ErrBackendUnavailable
	}
	return nil, fmt.Errorf("%w: %v", ErrNoBackend, firstErr)
}

// ID returns the picture's identifier.
func (p *Picture) ID() string { return p.id }

// Size returns the picture bounds in picture space.
func (p *Picture) Size() (w, h int) { return p.width, p.height }

// BitmapSize returns the rasterized resolution: floor(bounds * scale).
func (p *Picture) BitmapSize() (w, h int) { return p.bitmapW, p.bitmapH }

// BitmapScale returns the picture-to-bitmap scale factor.
func (p *Picture) BitmapScale() float64 { return p.scale }

// BackendName returns the mode of the backend that won construction.
func (p *Picture) BackendName() string { return p.backend.Name() }

// Element returns the displayable surface for the host to mount. Its
// pixels update on every Display call.
func (p *Picture) Element() *Pixmap { return p.element }

// BufferCount returns the number of buffers in the stack.
func (p *Picture) BufferCount() int { return len(p.buffers) }

// BufferAt returns the i-th buffer, bottom to top.
func (p *Picture) BufferAt(i int) *Buffer { return p.buffers[i] }

// BufferByID returns the buffer with the given id, or nil.
func (p *Picture) BufferByID(id int64) *Buffer {
	for _, b := range p.buffers {
		if b.ID() == id {
			return b
		}
	}
	return nil
}

// CurrentBufferIndex returns the live event's attachment index, -1 for
// none.
func (p *Picture) CurrentBufferIndex() int { return p.currentBuffer }

// AddBuffer attaches the buffer to the picture's backend and pushes it
// on top of the stack.
func (p *Picture) AddBuffer(b *Buffer) error {
	if p.BufferByID(b.ID()) != nil {
		return fmt.Errorf("%w: %d", ErrDuplicateBuffer, b.ID())
	}
	if err := b.attach(p.backend, p.bitmapW, p.bitmapH); err != nil {
		return err
	}
	p.buffers = append(p.buffers, b)
	return nil
}

// MoveBuffer reorders the stack, moving the buffer at from to position
// to. The current buffer attachment keeps pointing at the same buffer
// across the reorder.
func (p *Picture) MoveBuffer(from, to int) error {
	n := len(p.buffers)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrInvalidIndex
	}
	if from == to {
		return nil
	}
	var attached *Buffer
	if p.currentBuffer >= 0 && p.currentBuffer < n {
		attached = p.buffers[p.currentBuffer]
	}

	b := p.buffers[from]
	p.buffers = append(p.buffers[:from], p.buffers[from+1:]...)
	p.buffers = append(p.buffers[:to], append([]*Buffer{b}, p.buffers[to:]...)...)

	if attached != nil {
		for i, bb := range p.buffers {
			if bb == attached {
				p.currentBuffer = i
				break
			}
		}
	}
	return nil
}

// SetCurrentBufferIndex names the buffer the live event visually
// belongs to, -1 for none.
func (p *Picture) SetCurrentBufferIndex(i int) error {
	if i < -1 || i >= len(p.buffers) {
		return ErrInvalidIndex
	}
	p.currentBuffer = i
	return nil
}

// SetBufferVisible toggles a buffer's compositing participation.
func (p *Picture) SetBufferVisible(i int, visible bool) error {
	if i < 0 || i >= len(p.buffers) {
		return ErrInvalidIndex
	}
	p.buffers[i].SetVisible(visible)
	return nil
}

// PushEvent commits the event to the current buffer: the bitmap scale
// is applied to the coordinate payload, merge sources are snapshotted,
// and the buffer rasterizes incrementally.
//
// The live event commits through its own rasterizer; the commit
// clears that rasterizer and redraws the finished stroke in full. Any
// other event goes through the generic scratch rasterizer so it
// cannot clobber an in-progress stroke's mask.
func (p *Picture) PushEvent(ev Event) error {
	if p.currentBuffer < 0 || p.currentBuffer >= len(p.buffers) {
		return ErrNoCurrentBuffer
	}
	return p.PushEventTo(p.buffers[p.currentBuffer].ID(), ev)
}

// PushEventTo commits the event to the buffer with the given id.
func (p *Picture) PushEventTo(bufferID int64, ev Event) error {
	b := p.BufferByID(bufferID)
	if b == nil {
		return fmt.Errorf("%w: %d", ErrUnknownBuffer, bufferID)
	}
	if err := p.prepareEvent(ev); err != nil {
		return err
	}
	return b.PushEvent(ev, p.rasterizerFor(ev))
}

// InsertEvent inserts the event at the current buffer's insertion
// point, forcing a full replay of that buffer.
func (p *Picture) InsertEvent(ev Event) error {
	if p.currentBuffer < 0 || p.currentBuffer >= len(p.buffers) {
		return ErrNoCurrentBuffer
	}
	return p.InsertEventTo(p.buffers[p.currentBuffer].ID(), ev)
}

// InsertEventTo inserts the event at the named buffer's insertion point.
func (p *Picture) InsertEventTo(bufferID int64, ev Event) error {
	b := p.BufferByID(bufferID)
	if b == nil {
		return fmt.Errorf("%w: %d", ErrUnknownBuffer, bufferID)
	}
	if err := p.prepareEvent(ev); err != nil {
		return err
	}
	return b.InsertEvent(ev, p.rasterizerFor(ev))
}

// prepareEvent applies the bitmap scale and resolves merge snapshots.
func (p *Picture) prepareEvent(ev Event) error {
	if m, ok := ev.(*MergeEvent); ok && m.Snapshot() == nil {
		src := p.BufferByID(m.SourceID())
		if src == nil || src.Surface() == nil {
			return fmt.Errorf("%w: merge source %d", ErrUnknownBuffer, m.SourceID())
		}
		pix, err := p.backend.ReadPixels(src.Surface())
		if err != nil {
			return err
		}
		m.SetSnapshot(pix)
	}
	ev.Scale(p.scale)
	return nil
}

// rasterizerFor picks the dedicated current rasterizer when the event
// being pushed is the live one (pointer identity), else the generic
// scratch rasterizer.
func (p *Picture) rasterizerFor(ev Event) Rasterizer {
	if ev != nil && ev == p.currentEvent {
		return p.currentRasterizer
	}
	return p.genericRasterizer
}

// UndoLatest finds, across all buffers, the non-undone event with the
// globally highest session event id authored by sid and undoes it.
// It returns false when no buffer holds such an event.
func (p *Picture) UndoLatest(sid int64) (bool, error) {
	bestBuffer := -1
	bestIndex := -1
	var bestEid int64
	for i, b := range p.buffers {
		j := b.FindLatest(sid)
		if j < 0 {
			continue
		}
		eid := b.EventAt(j).SessionEventID()
		if bestBuffer == -1 || eid > bestEid {
			bestBuffer = i
			bestIndex = j
			bestEid = eid
		}
	}
	if bestBuffer < 0 {
		return false, nil
	}
	err := p.buffers[bestBuffer].UndoEventIndex(bestIndex, p.genericRasterizer)
	return err == nil, err
}

// UndoEventSessionID undoes the event with the exact session identity.
// Buffers are searched top to bottom, so on an id collision the topmost
// buffer wins; collisions cannot occur while session event ids stay
// unique per session, the search order just pins the tie-break.
func (p *Picture) UndoEventSessionID(sid, eid int64) (bool, error) {
	b, i := p.findEvent(sid, eid)
	if b == nil {
		return false, nil
	}
	err := b.UndoEventIndex(i, p.genericRasterizer)
	return err == nil, err
}

// RedoEventSessionID clears the undone flag of the event with the exact
// session identity.
func (p *Picture) RedoEventSessionID(sid, eid int64) (bool, error) {
	b, i := p.findEvent(sid, eid)
	if b == nil {
		return false, nil
	}
	err := b.RedoEventIndex(i, p.genericRasterizer)
	return err == nil, err
}

// RemoveEventSessionID deletes the event with the exact session
// identity permanently. Removing an absent identity returns false
// without touching anything.
func (p *Picture) RemoveEventSessionID(sid, eid int64) (bool, error) {
	b, i := p.findEvent(sid, eid)
	if b == nil {
		return false, nil
	}
	if _, err := b.RemoveEventIndex(i, p.genericRasterizer); err != nil {
		return false, err
	}
	return true, nil
}

// findEvent locates an event by session identity, searching buffers top
// to bottom.
func (p *Picture) findEvent(sid, eid int64) (*Buffer, int) {
	for i := len(p.buffers) - 1; i >= 0; i-- {
		b := p.buffers[i]
		if j := b.EventIndexBySessionID(sid, eid); j >= 0 {
			return b, j
		}
	}
	return nil, -1
}

// MoveEvent transfers the event with the given session identity from
// the source buffer to the target buffer, as if freshly pushed there.
// Ownership moves; the event is never duplicated.
func (p *Picture) MoveEvent(targetID, sourceID int64, sid, eid int64) (bool, error) {
	source := p.BufferByID(sourceID)
	target := p.BufferByID(targetID)
	if source == nil {
		return false, fmt.Errorf("%w: %d", ErrUnknownBuffer, sourceID)
	}
	if target == nil {
		return false, fmt.Errorf("%w: %d", ErrUnknownBuffer, targetID)
	}
	i := source.EventIndexBySessionID(sid, eid)
	if i < 0 {
		return false, nil
	}
	ev, err := source.RemoveEventIndex(i, p.genericRasterizer)
	if err != nil {
		return false, err
	}
	// The payload was already scaled when it first entered a buffer.
	if err := target.PushEvent(ev, p.genericRasterizer); err != nil {
		return false, err
	}
	return true, nil
}

// SetCurrentEvent sets or clears (nil) the in-progress overlay event.
// The event rasterizes into the dedicated current rasterizer and is
// composited over its attachment buffer at display time; committed
// surfaces stay untouched until the event is pushed.
func (p *Picture) SetCurrentEvent(ev Event) {
	p.currentEvent = ev
	p.currentRasterizer.Clear()
}

// CurrentEvent returns the live event, nil if none.
func (p *Picture) CurrentEvent() Event { return p.currentEvent }

// liveOverlay builds the overlay descriptor for the attachment buffer,
// coercing eraser mode on opaque attachments to a background-colored
// normal pass so the preview matches what committing will render.
func (p *Picture) liveOverlay(b *Buffer) *LiveOverlay {
	if p.currentEvent == nil {
		return nil
	}
	mode, color := b.renderModeFor(p.currentEvent)
	return &LiveOverlay{
		Rasterizer: p.currentRasterizer,
		Color:      color,
		Opacity:    p.currentEvent.Opacity(),
		Mode:       mode,
	}
}

// Display composites the buffer stack plus the live overlay into the
// element. While an animation owns the visible surface, Display is a
// guarded no-op.
func (p *Picture) Display() error {
	if p.animating {
		return nil
	}

	if p.currentEvent != nil {
		clip := p.currentEvent.BoundingBox().Intersect(SurfaceRect(p.bitmapW, p.bitmapH))
		p.currentRasterizer.SetClip(clip)
		// Incremental: the rasterizer continues from the last drawn
		// coordinate of the same event.
		if err := p.currentRasterizer.DrawEvent(p.currentEvent, 1); err != nil {
			return err
		}
	}

	layers := make([]Layer, len(p.buffers))
	for i, b := range p.buffers {
		layers[i] = Layer{
			Surface:  b.Surface(),
			Visible:  b.Visible(),
			HasAlpha: b.HasAlpha(),
		}
		if i == p.currentBuffer {
			layers[i].Live = p.liveOverlay(b)
		}
	}
	return p.backend.Composite(p.element, layers)
}

// PixelRGBA reads one displayed pixel. It forces a Display first so
// the readback reflects the latest committed state, then reads the
// un-premultiplied color.
func (p *Picture) PixelRGBA(x, y int) (RGBA, error) {
	if err := p.Display(); err != nil {
		return Transparent, err
	}
	if x < 0 || x >= p.bitmapW || y < 0 || y >= p.bitmapH {
		return Transparent, ErrInvalidIndex
	}
	return p.element.GetPixel(x, y), nil
}

// BlamePixel attributes the pixel to the events that painted it,
// newest first, topmost buffer first.
func (p *Picture) BlamePixel(x, y int) ([]Blame, error) {
	var all []Blame
	for i := len(p.buffers) - 1; i >= 0; i-- {
		blames, err := p.buffers[i].BlamePixel(x, y, p.genericRasterizer)
		if err != nil {
			return nil, err
		}
		all = append(all, blames...)
	}
	return all, nil
}

// Free releases every surface, rasterizer, and backend resource the
// picture owns. The picture must not be used afterwards.
func (p *Picture) Free() {
	if p.freed {
		return
	}
	p.freed = true
	p.StopAnimating()
	for _, b := range p.buffers {
		b.free()
	}
	p.freeRasterizers()
	if p.backend != nil {
		p.backend.Close()
	}
}

func (p *Picture) freeRasterizers() {
	if p.currentRasterizer != nil {
		p.currentRasterizer.Free()
		p.currentRasterizer = nil
	}
	if p.genericRasterizer != nil {
		p.genericRasterizer.Free()
		p.genericRasterizer = nil
	}
}
