// Package easel implements an event-sourced raster painting engine.
//
// # Overview
//
// An easel [Picture] is an editable image document built from immutable
// paint events (brush strokes, fills, buffer merges) applied over an
// ordered stack of layers called buffers. The pixel content of every
// buffer is the deterministic replay of its non-undone events, which is
// what makes undo, redo, out-of-order removal, and animated playback
// possible without ever storing more than the event log.
//
// # Quick Start
//
//	pic, err := easel.New("doc", 512, 512, 1.0, easel.DefaultModes(), 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pic.Free()
//
//	pic.AddBuffer(easel.NewBuffer(1, easel.White, false))
//
//	ev := easel.NewBrushEvent(sid, eid, easel.Black, 8, 1, 0.8)
//	ev.AddCoord(10, 10, 0.5)
//	ev.AddCoord(100, 100, 1.0)
//	pic.PushEvent(ev)
//	pic.Display()
//
// # Sessions
//
// Every event carries a (session id, session event id) identity. Session
// ids name the author, session event ids are a per-author monotonic
// sequence. Together they let collaborating sessions interleave, undo,
// and remove events without renumbering anything.
//
// # Backends
//
// Rasterization runs on one of several interchangeable backends:
//   - "software": pure Go scanline coverage rasterizer
//   - "gpufloat": wgpu float-texture accumulation (package gpu)
//   - "gpufixed": wgpu ping-ponged fixed-point double buffer (package gpu)
//
// Backends are registered in a process-wide registry and tried in the
// priority order given to [New]. A backend must pass a one-shot sanity
// draw+readback before it is trusted; backends that fail are skipped for
// the remainder of the process. All backends produce equivalent pixels
// within a small per-channel tolerance.
//
// # Concurrency
//
// A Picture and everything it owns is confined to a single goroutine.
// The animation loop yields between frames through a host-supplied
// scheduling primitive but never runs concurrently with other Picture
// operations.
package easel
