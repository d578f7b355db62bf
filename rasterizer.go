package easel

// Surface is a backend-owned pixel store sized to the Picture's bitmap
// resolution: a Pixmap for the software backend, a texture for the GPU
// backends. Surfaces must be explicitly freed by whoever created them.
type Surface interface {
	// Size returns the surface dimensions in pixels.
	Size() (w, h int)

	// Free releases the surface's backing store. Free is idempotent.
	Free()
}

// Rasterizer turns one event's payload into an alpha coverage mask and
// composites that mask into a destination surface. Each backend ships
// its own implementation; any call sequence must produce equivalent
// visible output across backends within a small per-channel tolerance.
//
// A Rasterizer is exclusively owned by one Picture and is reused across
// events: Clear resets the mask, DrawEvent accumulates coverage,
// DrawWithColor composites the accumulated mask into a surface.
type Rasterizer interface {
	// Clear resets the coverage mask and any partial-draw state.
	Clear()

	// SetClip restricts subsequent drawing to the given rect, already
	// intersected with the surface bounds by the caller or not; the
	// rasterizer clips it again to its own extent.
	SetClip(r Rect)

	// DrawEvent accumulates the event's coverage up to progress in
	// [0, 1]. Progress 1 draws the full payload. Partial cutoffs round
	// down to the payload's own sub-step granularity (whole coordinate
	// triples for brush strokes) so that resuming a partial draw and
	// finishing it equals one full draw. Calling DrawEvent again with
	// the same event and a higher progress continues where the
	// previous call stopped.
	DrawEvent(ev Event, progress float64) error

	// DrawWithColor composites the accumulated mask, tinted with c and
	// scaled by opacity, into dst using the given paint mode.
	DrawWithColor(dst Surface, c RGBA, opacity float64, mode PaintMode) error

	// Mask reads the accumulated coverage back as premultiplied white
	// pixels, one coverage byte per channel, zero outside the clip.
	// It exposes the raster result to callers that composite on the
	// CPU or inspect coverage directly.
	Mask() (*Pixmap, error)

	// CheckSanity performs a one-shot self-test draw and readback.
	// It returns false if the backend produced incorrect pixels, which
	// guards against buggy drivers. Callers run it immediately after
	// construction and fall back to another backend on failure.
	CheckSanity() bool

	// Free releases backend resources. Free is idempotent.
	Free()
}

// LiveOverlay describes the in-progress event composited on top of its
// attachment buffer during display, without touching the committed
// surface.
type LiveOverlay struct {
	Rasterizer Rasterizer
	Color      RGBA
	Opacity    float64
	Mode       PaintMode
}

// Layer is one entry of the compositing stack handed to a backend's
// Composite, bottom to top.
type Layer struct {
	Surface  Surface
	Visible  bool
	HasAlpha bool

	// Live is non-nil only for the buffer the in-progress event is
	// attached to.
	Live *LiveOverlay
}

// Backend is one closed rasterization variant: surface management,
// rasterizers, and the layer compositor, selected once at Picture
// construction and never per call.
type Backend interface {
	// Name returns the backend mode identifier.
	Name() string

	// Init acquires backend resources (GPU device, queues). It returns
	// ErrBackendUnavailable (possibly wrapped) when the backend cannot
	// run in this process.
	Init() error

	// Close releases everything Init acquired. Surfaces and
	// rasterizers created by this backend must be freed first.
	Close()

	// NewSurface creates a surface filled with the clear color.
	NewSurface(w, h int, clear RGBA) (Surface, error)

	// NewRasterizer creates a rasterizer with a w x h coverage mask.
	NewRasterizer(w, h int) (Rasterizer, error)

	// ClearSurface fills dst with c.
	ClearSurface(dst Surface, c RGBA) error

	// CopySurface overwrites dst with src's pixels. Both surfaces must
	// come from this backend and have identical dimensions.
	CopySurface(dst, src Surface) error

	// DrawPixmap composites CPU pixels into dst at the given opacity
	// and paint mode. Buffer merges replay through this.
	DrawPixmap(dst Surface, src *Pixmap, opacity float64, mode PaintMode) error

	// WritePixels overwrites dst with CPU pixels (no blending).
	// Snapshot restore and deserialization upload through this.
	WritePixels(dst Surface, src *Pixmap) error

	// Composite blends the layer stack bottom-to-top into dst.
	Composite(dst *Pixmap, layers []Layer) error

	// ReadPixels reads a surface back into a new pixmap.
	ReadPixels(src Surface) (*Pixmap, error)

	// ReadPixel reads one pixel, returning straight (unpremultiplied)
	// alpha.
	ReadPixel(src Surface, x, y int) (RGBA, error)
}
