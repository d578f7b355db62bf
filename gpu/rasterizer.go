package gpu

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/easel"
)

var errRasterizerFreed = errors.New("gpu: rasterizer already freed")

// maskRasterizer carries the state both rasterizer variants share: the
// clip rect and the partial-draw resume position. The dab vertex
// stream is generated here with exactly the cutoff, spacing, and
// pressure interpolation of the software rasterizer, so the two
// backends stamp the same dabs and differ only in coverage precision.
type maskRasterizer struct {
	backend *Backend
	width   int
	height  int
	clip    easel.Rect

	// Stamping continues from lastCoord when DrawEvent is called again
	// with the same event and a higher progress.
	lastEvent easel.Event
	lastCoord int

	// dirty is false while the mask texture holds no coverage; the next
	// dab pass clears instead of loading, and compositing an empty mask
	// is skipped outright.
	dirty bool

	freed bool
}

func (r *maskRasterizer) resetState() {
	r.lastEvent = nil
	r.lastCoord = 0
	r.dirty = false
}

func (r *maskRasterizer) SetClip(c easel.Rect) {
	r.clip = c.Intersect(easel.SurfaceRect(r.width, r.height))
}

// dabUniform packs the dab shader's uniform block: viewport size, pad,
// and the clip rect.
func (r *maskRasterizer) dabUniform() []byte {
	return packFloats([]float32{
		float32(r.width), float32(r.height), 0, 0,
		float32(r.clip.X0), float32(r.clip.Y0), float32(r.clip.X1), float32(r.clip.Y1),
	})
}

// blendUniform packs the blend shader's uniform block: viewport size,
// opacity, straight color, and the clip rect.
func (r *maskRasterizer) blendUniform(c easel.RGBA, opacity float64) []byte {
	return packFloats([]float32{
		float32(r.width), float32(r.height), float32(opacity), 0,
		float32(c.R), float32(c.G), float32(c.B), float32(c.A),
		float32(r.clip.X0), float32(r.clip.Y0), float32(r.clip.X1), float32(r.clip.Y1),
	})
}

// appendDab appends one dab quad: six vertices of position, offset
// from the dab center, radius, and feather width.
func appendDab(verts []float32, cx, cy, radius, hardness float64) []float32 {
	if radius <= 0 {
		return verts
	}
	feather := math.Max(1, (1-hardness)*radius)
	ext := float32(radius + 1)
	x, y := float32(cx), float32(cy)
	rf, ff := float32(radius), float32(feather)

	corner := func(dx, dy float32) []float32 {
		return []float32{x + dx, y + dy, dx, dy, rf, ff}
	}
	verts = append(verts, corner(-ext, -ext)...)
	verts = append(verts, corner(ext, -ext)...)
	verts = append(verts, corner(ext, ext)...)
	verts = append(verts, corner(-ext, -ext)...)
	verts = append(verts, corner(ext, ext)...)
	verts = append(verts, corner(-ext, ext)...)
	return verts
}

// appendSegmentDabs walks from a to b at sub-radius spacing,
// interpolating pressure, excluding the start point.
func appendSegmentDabs(verts []float32, a easel.Point, ap float64, b easel.Point, bp float64, radius, hardness float64) []float32 {
	dist := a.Distance(b)
	spacing := math.Max(radius/2, 0.5)
	steps := int(math.Ceil(dist / spacing))
	if steps < 1 {
		steps = 1
	}
	for s := 1; s <= steps; s++ {
		t := float64(s) / float64(steps)
		pt := a.Lerp(b, t)
		p := ap + (bp-ap)*t
		verts = appendDab(verts, pt.X, pt.Y, radius*p, hardness)
	}
	return verts
}

// brushVerts builds the dab quads for all whole coordinate triples up
// to the progress cutoff, advancing the resume position.
func (r *maskRasterizer) brushVerts(e *easel.BrushEvent, progress float64) []float32 {
	n := e.CoordCount()
	if n == 0 {
		return nil
	}
	upTo := int(math.Floor(progress * float64(n)))
	if upTo > n {
		upTo = n
	}

	start := 0
	if r.lastEvent == easel.Event(e) {
		start = r.lastCoord
	}
	if upTo <= start {
		return nil
	}

	var verts []float32
	for i := start; i < upTo; i++ {
		x, y, p := e.Coord(i)
		if i == 0 {
			verts = appendDab(verts, x, y, e.Radius()*p, e.Hardness())
			continue
		}
		px, py, pp := e.Coord(i - 1)
		verts = appendSegmentDabs(verts, easel.Pt(px, py), pp, easel.Pt(x, y), p, e.Radius(), e.Hardness())
	}

	r.lastEvent = e
	r.lastCoord = upTo
	return verts
}

// fillVerts builds one quad covering the clip rect with full coverage:
// the dab shader sees a zero center offset against an oversized radius.
func (r *maskRasterizer) fillVerts() []float32 {
	const fillRadius, fillFeather = 1e6, 1
	x0, y0 := float32(r.clip.X0), float32(r.clip.Y0)
	x1, y1 := float32(r.clip.X1), float32(r.clip.Y1)
	corner := func(x, y float32) []float32 {
		return []float32{x, y, 0, 0, fillRadius, fillFeather}
	}
	var verts []float32
	verts = append(verts, corner(x0, y0)...)
	verts = append(verts, corner(x1, y0)...)
	verts = append(verts, corner(x1, y1)...)
	verts = append(verts, corner(x0, y0)...)
	verts = append(verts, corner(x1, y1)...)
	verts = append(verts, corner(x0, y1)...)
	return verts
}

// eventVerts resolves an event into its dab vertex stream. A nil
// result with no error means nothing new to stamp.
func (r *maskRasterizer) eventVerts(ev easel.Event, progress float64) ([]float32, error) {
	switch e := ev.(type) {
	case *easel.BrushEvent:
		return r.brushVerts(e, progress), nil
	case *easel.FillEvent:
		// A fill has a single sub-step; nothing is drawn until the
		// cutoff reaches it.
		if progress >= 1 {
			return r.fillVerts(), nil
		}
		return nil, nil
	case *easel.MergeEvent:
		// Merges replay through Backend.DrawPixmap, not the mask.
		return nil, nil
	default:
		return nil, fmt.Errorf("gpu: unknown event kind %q", ev.Kind())
	}
}

// blendKindFor maps a paint mode onto fixed-function blending. The
// second result is false for modes that must blend on the CPU.
func blendKindFor(mode easel.PaintMode) (blendKind, bool) {
	switch mode {
	case easel.ModeNormal:
		return blendOver, true
	case easel.ModeEraser:
		return blendDstOut, true
	default:
		return 0, false
	}
}

// compositeMask blends the mask's coverage, tinted with c at the given
// opacity, into dst. Fixed-function modes draw directly; the remaining
// modes render the coverage to a scratch target, read it back, and
// blend on the CPU.
func (r *maskRasterizer) compositeMask(maskView hal.TextureView, dst easel.Surface, c easel.RGBA, opacity float64, mode easel.PaintMode) error {
	d, err := r.backend.surface(dst)
	if err != nil {
		return err
	}
	if d.width != r.width || d.height != r.height {
		return errSizeMismatch
	}
	if !r.dirty {
		return nil
	}

	if blend, ok := blendKindFor(mode); ok {
		return r.backend.encodePass(&renderPass{
			label:  "easel_mask_blend",
			view:   d.view,
			format: gputypes.TextureFormatRGBA8Unorm,
			load:   gputypes.LoadOpLoad,
			draws: []passDraw{{
				shader:  "blend",
				blend:   blend,
				srcView: maskView,
				uniform: r.blendUniform(c, opacity),
				verts:   fullscreenQuad(r.width, r.height),
				count:   6,
			}},
		})
	}

	src, err := r.readCoverageTinted(maskView, c)
	if err != nil {
		return err
	}
	pix, err := r.backend.ReadPixels(dst)
	if err != nil {
		return err
	}
	easel.BlendPixmap(pix, src, opacity, mode)
	return r.backend.WritePixels(dst, pix)
}

// maskPixmap reads the accumulated coverage back as premultiplied
// white pixels, the shared implementation behind both variants' Mask.
func (r *maskRasterizer) maskPixmap(maskView hal.TextureView) (*easel.Pixmap, error) {
	if r.freed {
		return nil, errRasterizerFreed
	}
	if !r.dirty {
		return easel.NewPixmap(r.width, r.height), nil
	}
	return r.readCoverageTinted(maskView, easel.White)
}

// readCoverageTinted renders the mask tinted with c into a scratch
// RGBA8 target and reads it back, yielding the same premultiplied
// source pixels the software rasterizer feeds its blend functions.
func (r *maskRasterizer) readCoverageTinted(maskView hal.TextureView, c easel.RGBA) (*easel.Pixmap, error) {
	tex, view, err := r.backend.createTexture("easel_coverage", r.width, r.height,
		gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc)
	if err != nil {
		return nil, err
	}
	defer func() {
		r.backend.device.DestroyTextureView(view)
		r.backend.device.DestroyTexture(tex)
	}()

	err = r.backend.encodePass(&renderPass{
		label:  "easel_coverage",
		view:   view,
		format: gputypes.TextureFormatRGBA8Unorm,
		load:   gputypes.LoadOpClear,
		draws: []passDraw{{
			shader:  "blend",
			blend:   blendReplace,
			srcView: maskView,
			uniform: r.blendUniform(c, 1),
			verts:   fullscreenQuad(r.width, r.height),
			count:   6,
		}},
	})
	if err != nil {
		return nil, err
	}

	data, err := r.backend.readTexture(tex, r.width, r.height)
	if err != nil {
		return nil, err
	}
	pix := easel.NewPixmap(r.width, r.height)
	copy(pix.Data(), data)
	return pix, nil
}
