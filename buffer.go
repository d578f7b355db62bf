package easel

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrInvalidIndex is returned for event or buffer positions outside the
// valid range. It signals a caller contract violation.
var ErrInvalidIndex = errors.New("easel: index out of range")

// Undo snapshot tuning. A snapshot is a copy of the committed surface
// taken every snapshotInterval committed events; replay restarts from
// the newest snapshot that precedes the first changed event instead of
// from the clear color.
const (
	snapshotInterval = 8
	maxSnapshots     = 4
)

// bufferSnapshot is the committed surface after replaying the first
// count events with the undone flags they had at capture time. Any
// mutation at an index below count invalidates it.
type bufferSnapshot struct {
	count int
	pix   *Pixmap
}

// Blame is one entry of a pixel's event attribution: the event and the
// alpha change it contributed at that pixel.
type Blame struct {
	Event Event
	Alpha float64
}

// Buffer is one layer: an ordered, independently undoable sequence of
// events together with the rasterized surface representing the replay
// of its non-undone events from the clear color.
//
// The surface invariant holds after every exported mutation: committed
// pixels always equal the in-order composite of all events with
// undone=false, blended per event mode, starting from the clear color.
// Operations that cannot update the surface incrementally replay the
// whole sequence; that cost is linear in the number of surviving events
// and is an accepted property of this design, not a defect.
type Buffer struct {
	id             int64
	clearColor     RGBA
	hasAlpha       bool
	visible        bool
	insertionPoint int

	events []Event

	backend Backend
	surface Surface
	width   int
	height  int

	hasUndoStates bool
	snapshots     []*bufferSnapshot
}

// NewBuffer creates a detached buffer. The surface is allocated when
// the buffer joins a Picture.
func NewBuffer(id int64, clearColor RGBA, hasAlpha bool) *Buffer {
	return &Buffer{
		id:         id,
		clearColor: clearColor,
		hasAlpha:   hasAlpha,
		visible:    true,
	}
}

// ID returns the buffer's id, unique within its Picture.
func (b *Buffer) ID() int64 { return b.id }

// ClearColor returns the color the replay starts from.
func (b *Buffer) ClearColor() RGBA { return b.clearColor }

// HasAlpha reports whether the buffer keeps an alpha channel.
func (b *Buffer) HasAlpha() bool { return b.hasAlpha }

// Visible reports whether the buffer participates in compositing.
func (b *Buffer) Visible() bool { return b.visible }

// SetVisible toggles compositing participation. The committed surface
// is unaffected.
func (b *Buffer) SetVisible(v bool) { b.visible = v }

// InsertionPoint returns the index InsertEvent inserts at.
func (b *Buffer) InsertionPoint() int { return b.insertionPoint }

// SetInsertionPoint records where subsequent InsertEvent calls insert.
func (b *Buffer) SetInsertionPoint(i int) error {
	if i < 0 || i > len(b.events) {
		return ErrInvalidIndex
	}
	b.insertionPoint = i
	return nil
}

// SetUndoStates enables or disables surface snapshots for faster undo.
func (b *Buffer) SetUndoStates(on bool) {
	b.hasUndoStates = on
	if !on {
		b.snapshots = nil
	}
}

// UndoStates reports whether the buffer keeps undo snapshots.
func (b *Buffer) UndoStates() bool { return b.hasUndoStates }

// EventCount returns the number of events, undone ones included.
func (b *Buffer) EventCount() int { return len(b.events) }

// EventAt returns the i-th event.
func (b *Buffer) EventAt(i int) Event { return b.events[i] }

// Surface returns the committed surface, nil while detached.
func (b *Buffer) Surface() Surface { return b.surface }

// attach binds the buffer to a backend and allocates its surface. The
// Picture calls this from AddBuffer and during parsing.
func (b *Buffer) attach(backend Backend, w, h int) error {
	surface, err := backend.NewSurface(w, h, b.clearColor)
	if err != nil {
		return err
	}
	b.backend = backend
	b.surface = surface
	b.width = w
	b.height = h
	return nil
}

// free releases the surface and snapshots.
func (b *Buffer) free() {
	if b.surface != nil {
		b.surface.Free()
		b.surface = nil
	}
	b.snapshots = nil
	b.backend = nil
}

// PushEvent appends the event (display scale already applied) and
// rasterizes just the new event into the committed surface.
func (b *Buffer) PushEvent(ev Event, r Rasterizer) error {
	if b.surface == nil {
		return errors.New("easel: buffer not attached to a picture")
	}
	b.events = append(b.events, ev)
	if ev.Undone() {
		return nil
	}
	if err := b.renderEvent(ev, r, b.surface); err != nil {
		b.events = b.events[:len(b.events)-1]
		return err
	}
	b.maybeSnapshot()
	return nil
}

// InsertEvent inserts the event at the stored insertion point and fully
// re-rasterizes: an insertion in the middle invalidates the incremental
// surface.
func (b *Buffer) InsertEvent(ev Event, r Rasterizer) error {
	if b.surface == nil {
		return errors.New("easel: buffer not attached to a picture")
	}
	i := b.insertionPoint
	if i < 0 || i > len(b.events) {
		return ErrInvalidIndex
	}
	b.events = append(b.events, nil)
	copy(b.events[i+1:], b.events[i:])
	b.events[i] = ev
	b.invalidateSnapshots(i)
	return b.replay(r)
}

// FindLatest returns the index of the highest session-event-id,
// non-undone event authored by sid, or -1.
func (b *Buffer) FindLatest(sid int64) int {
	best := -1
	var bestEid int64
	for i, ev := range b.events {
		if ev.Sid() != sid || ev.Undone() {
			continue
		}
		if best == -1 || ev.SessionEventID() > bestEid {
			best = i
			bestEid = ev.SessionEventID()
		}
	}
	return best
}

// EventIndexBySessionID returns the index of the event with the exact
// session identity, or -1.
func (b *Buffer) EventIndexBySessionID(sid, eid int64) int {
	for i, ev := range b.events {
		if ev.Sid() == sid && ev.SessionEventID() == eid {
			return i
		}
	}
	return -1
}

// UndoEventIndex marks the i-th event undone and re-rasterizes.
func (b *Buffer) UndoEventIndex(i int, r Rasterizer) error {
	return b.setUndone(i, true, r)
}

// RedoEventIndex clears the i-th event's undone flag and re-rasterizes.
func (b *Buffer) RedoEventIndex(i int, r Rasterizer) error {
	return b.setUndone(i, false, r)
}

func (b *Buffer) setUndone(i int, undone bool, r Rasterizer) error {
	if i < 0 || i >= len(b.events) {
		return ErrInvalidIndex
	}
	ev := b.events[i]
	if ev.Undone() == undone {
		return nil
	}
	ev.SetUndone(undone)
	b.invalidateSnapshots(i)
	if err := b.replay(r); err != nil {
		ev.SetUndone(!undone)
		return err
	}
	return nil
}

// RemoveEventIndex deletes the i-th event permanently, re-rasterizes,
// and returns the removed event so callers can transfer ownership.
func (b *Buffer) RemoveEventIndex(i int, r Rasterizer) (Event, error) {
	if i < 0 || i >= len(b.events) {
		return nil, ErrInvalidIndex
	}
	ev := b.events[i]
	b.events = append(b.events[:i], b.events[i+1:]...)
	if i < b.insertionPoint {
		b.insertionPoint--
	}
	b.invalidateSnapshots(i)
	if err := b.replay(r); err != nil {
		return nil, err
	}
	return ev, nil
}

// BlamePixel returns, newest-first, the events whose rasterized
// footprint covers the pixel, paired with the alpha change each one
// contributed there. It replays the buffer incrementally against a
// scratch surface clipped to the single pixel.
func (b *Buffer) BlamePixel(x, y int, r Rasterizer) ([]Blame, error) {
	if b.surface == nil {
		return nil, errors.New("easel: buffer not attached to a picture")
	}
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return nil, ErrInvalidIndex
	}
	pixel := Rect{x, y, x + 1, y + 1}

	running, err := b.backend.NewSurface(b.width, b.height, b.clearColor)
	if err != nil {
		return nil, err
	}
	defer running.Free()
	probe, err := b.backend.NewSurface(b.width, b.height, Transparent)
	if err != nil {
		return nil, err
	}
	defer probe.Free()

	prev, err := b.backend.ReadPixel(running, x, y)
	if err != nil {
		return nil, err
	}

	var blames []Blame
	for _, ev := range b.events {
		if ev.Undone() {
			continue
		}
		// Coverage probe: the event alone against transparency.
		if err := b.backend.ClearSurface(probe, Transparent); err != nil {
			return nil, err
		}
		if err := b.renderEventClipped(ev, r, probe, pixel); err != nil {
			return nil, err
		}
		cov, err := b.backend.ReadPixel(probe, x, y)
		if err != nil {
			return nil, err
		}

		if err := b.renderEventClipped(ev, r, running, pixel); err != nil {
			return nil, err
		}
		cur, err := b.backend.ReadPixel(running, x, y)
		if err != nil {
			return nil, err
		}

		if cov.A > 0 {
			blames = append(blames, Blame{Event: ev, Alpha: cur.A - prev.A})
		}
		prev = cur
	}

	// Newest first.
	for i, j := 0, len(blames)-1; i < j; i, j = i+1, j-1 {
		blames[i], blames[j] = blames[j], blames[i]
	}
	return blames, nil
}

// renderEvent rasterizes one event into dst clipped to the event's
// bounding box.
func (b *Buffer) renderEvent(ev Event, r Rasterizer, dst Surface) error {
	return b.renderEventClipped(ev, r, dst, SurfaceRect(b.width, b.height))
}

func (b *Buffer) renderEventClipped(ev Event, r Rasterizer, dst Surface, clip Rect) error {
	clip = clip.Intersect(ev.BoundingBox().Intersect(SurfaceRect(b.width, b.height)))
	if clip.Empty() {
		return nil
	}

	if m, ok := ev.(*MergeEvent); ok {
		snap := m.Snapshot()
		if snap == nil {
			// A parsed merge whose source buffer was missing; nothing
			// deterministic to draw.
			Logger().Warn("merge event has no source snapshot",
				slog.Int64("sid", m.Sid()), slog.Int64("eid", m.SessionEventID()))
			return nil
		}
		mode := m.Mode()
		if mode == ModeEraser && !b.hasAlpha {
			mode = ModeNormal
		}
		return b.backend.DrawPixmap(dst, snap, m.Opacity(), mode)
	}

	mode, color := b.renderModeFor(ev)
	r.Clear()
	r.SetClip(clip)
	if err := r.DrawEvent(ev, 1); err != nil {
		return err
	}
	return r.DrawWithColor(dst, color, ev.Opacity(), mode)
}

// renderModeFor resolves the effective mode and paint color. Erasing
// into a buffer without alpha cannot reduce coverage, so it renders as
// a normal pass in the clear color: visually "erased to background"
// instead of corrupted channels.
func (b *Buffer) renderModeFor(ev Event) (PaintMode, RGBA) {
	if ev.Mode() == ModeEraser && !b.hasAlpha {
		return ModeNormal, b.clearColor
	}
	return ev.Mode(), ev.PaintColor()
}

// replay rebuilds the committed surface from the newest valid snapshot
// (or the clear color) through every non-undone event in order. The
// fresh surface replaces the committed one only after the whole replay
// succeeded, so a failure never leaves garbage on screen.
func (b *Buffer) replay(r Rasterizer) error {
	start := 0
	var base *Pixmap
	if b.hasUndoStates {
		if snap := b.newestSnapshot(); snap != nil {
			start = snap.count
			base = snap.pix
		}
	}

	fresh, err := b.backend.NewSurface(b.width, b.height, b.clearColor)
	if err != nil {
		return err
	}
	if base != nil {
		if err := b.backend.WritePixels(fresh, base); err != nil {
			fresh.Free()
			return err
		}
	}

	for i := start; i < len(b.events); i++ {
		ev := b.events[i]
		if ev.Undone() {
			continue
		}
		if err := b.renderEvent(ev, r, fresh); err != nil {
			fresh.Free()
			return fmt.Errorf("easel: replay of event %d/%d: %w", i, len(b.events), err)
		}
	}

	old := b.surface
	b.surface = fresh
	old.Free()
	Logger().Debug("buffer replayed",
		slog.Int64("buffer", b.id),
		slog.Int("from", start),
		slog.Int("events", len(b.events)))
	return nil
}

// maybeSnapshot captures an undo snapshot after every
// snapshotInterval-th committed event, bounded to maxSnapshots.
func (b *Buffer) maybeSnapshot() {
	if !b.hasUndoStates || len(b.events)%snapshotInterval != 0 {
		return
	}
	pix, err := b.backend.ReadPixels(b.surface)
	if err != nil {
		return
	}
	b.snapshots = append(b.snapshots, &bufferSnapshot{count: len(b.events), pix: pix})
	if len(b.snapshots) > maxSnapshots {
		b.snapshots = b.snapshots[1:]
	}
}

// newestSnapshot returns the most recent valid snapshot, if any.
func (b *Buffer) newestSnapshot() *bufferSnapshot {
	if len(b.snapshots) == 0 {
		return nil
	}
	return b.snapshots[len(b.snapshots)-1]
}

// invalidateSnapshots drops snapshots that include state at or after
// the changed index.
func (b *Buffer) invalidateSnapshots(changed int) {
	kept := b.snapshots[:0]
	for _, s := range b.snapshots {
		if s.count <= changed {
			kept = append(kept, s)
		}
	}
	b.snapshots = kept
}
