package gpu

import (
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/easel"
)

// compositor owns the render target the layer stack flattens into.
// The target persists across frames and is recreated only when the
// destination size changes.
type compositor struct {
	backend *Backend
	tex     hal.Texture
	view    hal.TextureView
	width   int
	height  int
}

func (c *compositor) destroy() {
	if c.view != nil {
		c.backend.device.DestroyTextureView(c.view)
		c.view = nil
	}
	if c.tex != nil {
		c.backend.device.DestroyTexture(c.tex)
		c.tex = nil
	}
	c.width, c.height = 0, 0
}

func (c *compositor) ensureTarget(w, h int) error {
	if c.tex != nil && c.width == w && c.height == h {
		return nil
	}
	c.destroy()
	tex, view, err := c.backend.createTexture("easel_composite", w, h,
		gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc)
	if err != nil {
		return err
	}
	c.tex = tex
	c.view = view
	c.width, c.height = w, h
	easel.Logger().Debug("compositor target resized",
		slog.String("backend", c.backend.name),
		slog.Int("width", w), slog.Int("height", h))
	return nil
}

// composite flattens the layer stack bottom-to-top into dst. A layer
// carrying a live overlay is copied to a scratch surface and the
// overlay stroke is blended into the copy, so the committed surface
// stays untouched.
func (c *compositor) composite(dst *easel.Pixmap, layers []easel.Layer) error {
	w, h := dst.Width(), dst.Height()
	if err := c.ensureTarget(w, h); err != nil {
		return err
	}

	var scratch []easel.Surface
	defer func() {
		for _, sc := range scratch {
			sc.Free()
		}
	}()

	draws := make([]passDraw, 0, len(layers))
	for _, layer := range layers {
		if !layer.Visible || layer.Surface == nil {
			continue
		}
		src, err := c.backend.surface(layer.Surface)
		if err != nil {
			return err
		}
		view := src.view
		if layer.Live != nil {
			copied, err := c.backend.NewSurface(src.width, src.height, easel.Transparent)
			if err != nil {
				return err
			}
			scratch = append(scratch, copied)
			if err := c.backend.CopySurface(copied, layer.Surface); err != nil {
				return err
			}
			err = layer.Live.Rasterizer.DrawWithColor(copied, layer.Live.Color, layer.Live.Opacity, layer.Live.Mode)
			if err != nil {
				return err
			}
			view = copied.(*Surface).view
		}
		draws = append(draws, passDraw{
			shader:  "quad",
			blend:   blendOver,
			srcView: view,
			uniform: quadUniform(w, h, 1),
			verts:   fullscreenQuad(w, h),
			count:   6,
		})
	}

	err := c.backend.encodePass(&renderPass{
		label:  "easel_composite",
		view:   c.view,
		format: gputypes.TextureFormatRGBA8Unorm,
		load:   gputypes.LoadOpClear,
		draws:  draws,
	})
	if err != nil {
		return err
	}

	data, err := c.backend.readTexture(c.tex, w, h)
	if err != nil {
		return err
	}
	copy(dst.Data(), data)
	return nil
}
