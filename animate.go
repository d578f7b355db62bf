package easel

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAnimating is returned when Animate is called while a replay is
// already running.
var ErrAnimating = errors.New("easel: already animating")

// FrameScheduler schedules one animation tick. The host calls the
// given function when the next frame should advance (typically from a
// vsync or timer callback). A nil scheduler makes Animate run the
// whole replay synchronously before returning.
type FrameScheduler func(tick func())

// SetFrameScheduler installs the host frame primitive used by Animate.
func (p *Picture) SetFrameScheduler(s FrameScheduler) { p.scheduler = s }

// IsAnimating reports whether a replay currently owns the element.
func (p *Picture) IsAnimating() bool { return p.animating }

// animEvent is one queue entry of the flattened bottom-to-top,
// buffer-then-event replay order.
type animEvent struct {
	buffer *Buffer
	ev     Event
}

// animStroke is one concurrent stroke slot: a dedicated rasterizer
// bound to the event it is progressively drawing.
type animStroke struct {
	r        Rasterizer
	buffer   *Buffer
	ev       Event
	progress float64
}

// animLayer holds the per-buffer playback surfaces: accum collects
// fully drawn events, frame is the scratch copy the in-flight stroke
// masks render over each tick.
type animLayer struct {
	buffer *Buffer
	accum  Surface
	frame  Surface
}

type animation struct {
	queue    []animEvent
	next     int
	strokes  []*animStroke
	layers   []animLayer
	speed    float64
	done     func()
	stopped  bool
	released bool
}

// Animate replays the picture's entire non-undone event history
// forward from the clear colors, drawing up to simultaneousStrokes
// events concurrently, each advancing by speed per tick. When every
// event has fully transferred into its buffer's accumulation surface
// the done callback fires exactly once and the committed display is
// restored.
//
// speed must be in (0, 1]; each stroke completes once its progress
// exceeds 1.
func (p *Picture) Animate(simultaneousStrokes int, speed float64, done func()) error {
	if p.animating {
		return ErrAnimating
	}
	if simultaneousStrokes < 1 {
		return fmt.Errorf("easel: simultaneousStrokes %d < 1", simultaneousStrokes)
	}
	if speed <= 0 || speed > 1 {
		return fmt.Errorf("easel: animation speed %g outside (0, 1]", speed)
	}

	anim := &animation{speed: speed, done: done}
	for _, b := range p.buffers {
		for i := 0; i < b.EventCount(); i++ {
			if ev := b.EventAt(i); !ev.Undone() {
				anim.queue = append(anim.queue, animEvent{buffer: b, ev: ev})
			}
		}
	}

	var err error
	anim.layers = make([]animLayer, len(p.buffers))
	for i, b := range p.buffers {
		anim.layers[i].buffer = b
		anim.layers[i].accum, err = p.backend.NewSurface(p.bitmapW, p.bitmapH, b.ClearColor())
		if err == nil {
			anim.layers[i].frame, err = p.backend.NewSurface(p.bitmapW, p.bitmapH, b.ClearColor())
		}
		if err != nil {
			p.releaseAnimation(anim)
			return err
		}
	}
	for i := 0; i < simultaneousStrokes; i++ {
		var r Rasterizer
		r, err = p.backend.NewRasterizer(p.bitmapW, p.bitmapH)
		if err != nil {
			p.releaseAnimation(anim)
			return err
		}
		anim.strokes = append(anim.strokes, &animStroke{r: r})
	}

	p.anim = anim
	p.animating = true
	Logger().Debug("animation started",
		slog.String("picture", p.id),
		slog.Int("events", len(anim.queue)),
		slog.Int("strokes", simultaneousStrokes))

	if p.scheduler == nil {
		for p.anim == anim && !anim.stopped {
			finished, err := p.tickAnimation(anim)
			if err != nil {
				p.StopAnimating()
				return err
			}
			if finished {
				p.finishAnimation(anim)
				break
			}
		}
		return nil
	}

	var step func()
	step = func() {
		if p.anim != anim || anim.stopped {
			return
		}
		finished, err := p.tickAnimation(anim)
		if err != nil {
			Logger().Warn("animation aborted", slog.String("picture", p.id), slog.Any("err", err))
			p.StopAnimating()
			return
		}
		if finished {
			p.finishAnimation(anim)
			return
		}
		p.scheduler(step)
	}
	p.scheduler(step)
	return nil
}

// StopAnimating cancels a replay mid-flight, releases every
// animation-scoped surface and rasterizer exactly once, and forces a
// normal Display. Safe to call from within or outside a frame
// callback, and when no animation is running.
func (p *Picture) StopAnimating() {
	anim := p.anim
	if anim == nil {
		return
	}
	anim.stopped = true
	p.anim = nil
	p.animating = false
	p.releaseAnimation(anim)
	if p.element != nil && p.backend != nil {
		if err := p.Display(); err != nil {
			Logger().Warn("display after stop failed", slog.String("picture", p.id), slog.Any("err", err))
		}
	}
}

// tickAnimation advances every active stroke by one frame and
// composites the playback state into the element. It reports whether
// the queue is exhausted and all strokes have finished.
func (p *Picture) tickAnimation(anim *animation) (finished bool, err error) {
	active := 0
	for _, s := range anim.strokes {
		if s.ev == nil && !p.claimNextEvent(anim, s) {
			continue
		}
		active++
		s.progress += anim.speed
		pr := s.progress
		if pr > 1 {
			pr = 1
		}
		clip := s.ev.BoundingBox().Intersect(SurfaceRect(p.bitmapW, p.bitmapH))
		s.r.SetClip(clip)
		if err := s.r.DrawEvent(s.ev, pr); err != nil {
			return false, err
		}
		if s.progress > 1 {
			if err := p.commitAnimStroke(anim, s); err != nil {
				return false, err
			}
		}
	}

	if err := p.composeAnimFrame(anim); err != nil {
		return false, err
	}
	return active == 0 && anim.next >= len(anim.queue), nil
}

// claimNextEvent binds the stroke to the next pending queue entry.
func (p *Picture) claimNextEvent(anim *animation, s *animStroke) bool {
	if anim.next >= len(anim.queue) {
		return false
	}
	entry := anim.queue[anim.next]
	anim.next++
	s.buffer = entry.buffer
	s.ev = entry.ev
	s.progress = 0
	s.r.Clear()
	return true
}

// commitAnimStroke transfers a completed event into its buffer's
// accumulation surface and frees the stroke slot.
func (p *Picture) commitAnimStroke(anim *animation, s *animStroke) error {
	accum := p.animAccum(anim, s.buffer)
	clip := s.ev.BoundingBox().Intersect(SurfaceRect(p.bitmapW, p.bitmapH))
	if err := s.buffer.renderEventClipped(s.ev, s.r, accum, clip); err != nil {
		return err
	}
	s.ev = nil
	s.buffer = nil
	s.progress = 0
	s.r.Clear()
	return nil
}

func (p *Picture) animAccum(anim *animation, b *Buffer) Surface {
	for i := range anim.layers {
		if anim.layers[i].buffer == b {
			return anim.layers[i].accum
		}
	}
	return nil
}

// composeAnimFrame copies each accumulation surface over its frame
// surface, paints the in-flight stroke masks on top, and composites
// the whole stack into the element.
func (p *Picture) composeAnimFrame(anim *animation) error {
	layers := make([]Layer, len(anim.layers))
	for i := range anim.layers {
		al := &anim.layers[i]
		if err := p.backend.CopySurface(al.frame, al.accum); err != nil {
			return err
		}
		for _, s := range anim.strokes {
			if s.ev == nil || s.buffer != al.buffer {
				continue
			}
			mode, color := al.buffer.renderModeFor(s.ev)
			if err := s.r.DrawWithColor(al.frame, color, s.ev.Opacity(), mode); err != nil {
				return err
			}
		}
		layers[i] = Layer{
			Surface:  al.frame,
			Visible:  al.buffer.Visible(),
			HasAlpha: al.buffer.HasAlpha(),
		}
	}
	return p.backend.Composite(p.element, layers)
}

// finishAnimation runs on natural completion: resources go first, the
// committed display comes back, then the callback fires.
func (p *Picture) finishAnimation(anim *animation) {
	if p.anim != anim {
		return
	}
	p.anim = nil
	p.animating = false
	p.releaseAnimation(anim)
	if err := p.Display(); err != nil {
		Logger().Warn("display after animation failed", slog.String("picture", p.id), slog.Any("err", err))
	}
	if anim.done != nil {
		anim.done()
	}
}

func (p *Picture) releaseAnimation(anim *animation) {
	if anim.released {
		return
	}
	anim.released = true
	for _, s := range anim.strokes {
		if s.r != nil {
			s.r.Free()
		}
	}
	for i := range anim.layers {
		if anim.layers[i].accum != nil {
			anim.layers[i].accum.Free()
		}
		if anim.layers[i].frame != nil {
			anim.layers[i].frame.Free()
		}
	}
}
