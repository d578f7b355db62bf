package gpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/easel"
)

// fixedRasterizer accumulates dab coverage in a ping-ponged pair of
// RGBA8Unorm mask textures for drivers that cannot render to float
// formats. Each dab pass copies the previous mask into the other
// texture and max-blends the new dabs on top, then the pair swaps.
// Coverage quantizes to 8 bits, which stays inside the cross-backend
// tolerance.
type fixedRasterizer struct {
	maskRasterizer

	tex   [2]hal.Texture
	view  [2]hal.TextureView
	front int
}

var _ easel.Rasterizer = (*fixedRasterizer)(nil)

func newFixedRasterizer(b *Backend, w, h int) (*fixedRasterizer, error) {
	r := &fixedRasterizer{
		maskRasterizer: maskRasterizer{
			backend: b,
			width:   w,
			height:  h,
			clip:    easel.SurfaceRect(w, h),
		},
	}
	for i := 0; i < 2; i++ {
		tex, view, err := b.createTexture("easel_mask_u8", w, h,
			gputypes.TextureFormatRGBA8Unorm,
			gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding)
		if err != nil {
			for j := 0; j < i; j++ {
				b.device.DestroyTextureView(r.view[j])
				b.device.DestroyTexture(r.tex[j])
			}
			return nil, err
		}
		r.tex[i] = tex
		r.view[i] = view
	}
	return r, nil
}

func (r *fixedRasterizer) Clear() {
	r.resetState()
}

func (r *fixedRasterizer) DrawEvent(ev easel.Event, progress float64) error {
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

	back := 1 - r.front
	draws := make([]passDraw, 0, 2)
	if r.dirty {
		draws = append(draws, passDraw{
			shader:  "quad",
			blend:   blendReplace,
			srcView: r.view[r.front],
			uniform: quadUniform(r.width, r.height, 1),
			verts:   fullscreenQuad(r.width, r.height),
			count:   6,
		})
	}
	draws = append(draws, passDraw{
		shader:  "dab",
		blend:   blendMax,
		uniform: r.dabUniform(),
		verts:   packFloats(verts),
		count:   uint32(len(verts) / 6),
	})

	err = r.backend.encodePass(&renderPass{
		label:  "easel_dabs_u8",
		view:   r.view[back],
		format: gputypes.TextureFormatRGBA8Unorm,
		load:   gputypes.LoadOpClear,
		draws:  draws,
	})
	if err != nil {
		return err
	}
	r.front = back
	r.dirty = true
	return nil
}

func (r *fixedRasterizer) DrawWithColor(dst easel.Surface, c easel.RGBA, opacity float64, mode easel.PaintMode) error {
	if r.freed {
		return errRasterizerFreed
	}
	return r.compositeMask(r.view[r.front], dst, c, opacity, mode)
}

func (r *fixedRasterizer) Mask() (*easel.Pixmap, error) {
	return r.maskPixmap(r.view[r.front])
}

func (r *fixedRasterizer) CheckSanity() bool {
	return easel.RunSanityCheck(r.backend)
}

func (r *fixedRasterizer) Free() {
	if r.freed {
		return
	}
	r.freed = true
	for i := 0; i < 2; i++ {
		if r.view[i] != nil {
			r.backend.device.DestroyTextureView(r.view[i])
			r.view[i] = nil
		}
		if r.tex[i] != nil {
			r.backend.device.DestroyTexture(r.tex[i])
			r.tex[i] = nil
		}
	}
}
