package gpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/easel"
)

// floatRasterizer accumulates dab coverage in a single RGBA16Float
// mask texture with max blending. Float render targets keep soft dab
// edges exact across restamping, matching the software rasterizer's
// float32 mask.
type floatRasterizer struct {
	maskRasterizer

	maskTex  hal.Texture
	maskView hal.TextureView
}

var _ easel.Rasterizer = (*floatRasterizer)(nil)

func newFloatRasterizer(b *Backend, w, h int) (*floatRasterizer, error) {
	tex, view, err := b.createTexture("easel_mask_f16", w, h,
		gputypes.TextureFormatRGBA16Float,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding)
	if err != nil {
		return nil, err
	}
	r := &floatRasterizer{
		maskRasterizer: maskRasterizer{
			backend: b,
			width:   w,
			height:  h,
			clip:    easel.SurfaceRect(w, h),
		},
		maskTex:  tex,
		maskView: view,
	}
	return r, nil
}

// Clear resets the mask. No GPU work happens here; the next dab pass
// clears the texture instead of loading it.
func (r *floatRasterizer) Clear() {
	r.resetState()
}

func (r *floatRasterizer) DrawEvent(ev easel.Event, progress float64) error {
	if r.freed {
		return errRasterizerFreed
	}
	if progress < 0 {
		progress = 0
	} else if progress > 1 {
		progress = 1
	}
	verts, err := r.eventVerts(ev, progress)
	if err != nil {
		return err
	}
	if len(verts) == 0 {
		return nil
	}

	load := gputypes.LoadOpLoad
	if !r.dirty {
		load = gputypes.LoadOpClear
	}
	err = r.backend.encodePass(&renderPass{
		label:  "easel_dabs_f16",
		view:   r.maskView,
		format: gputypes.TextureFormatRGBA16Float,
		load:   load,
		draws: []passDraw{{
			shader:  "dab",
			blend:   blendMax,
			uniform: r.dabUniform(),
			verts:   packFloats(verts),
			count:   uint32(len(verts) / 6),
		}},
	})
	if err != nil {
		return err
	}
	r.dirty = true
	return nil
}

func (r *floatRasterizer) DrawWithColor(dst easel.Surface, c easel.RGBA, opacity float64, mode easel.PaintMode) error {
	if r.freed {
		return errRasterizerFreed
	}
	return r.compositeMask(r.maskView, dst, c, opacity, mode)
}

func (r *floatRasterizer) Mask() (*easel.Pixmap, error) {
	return r.maskPixmap(r.maskView)
}

func (r *floatRasterizer) CheckSanity() bool {
	return easel.RunSanityCheck(r.backend)
}

func (r *floatRasterizer) Free() {
	if r.freed {
		return
	}
	r.freed = true
	if r.maskView != nil {
		r.backend.device.DestroyTextureView(r.maskView)
		r.maskView = nil
	}
	if r.maskTex != nil {
		r.backend.device.DestroyTexture(r.maskTex)
		r.maskTex = nil
	}
}
