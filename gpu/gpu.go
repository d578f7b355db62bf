package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
	"unsafe"

	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import the Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/easel"
)

// Backend mode names registered with the easel backend registry.
const (
	// BackendFloat accumulates coverage in an RGBA16Float texture.
	BackendFloat = "gpufloat"

	// BackendFixed accumulates coverage in a ping-ponged pair of
	// RGBA8Unorm textures for drivers without float render targets.
	BackendFixed = "gpufixed"
)

func init() {
	easel.RegisterBackend(BackendFloat, func() easel.Backend {
		return &Backend{name: BackendFloat, floatMask: true}
	})
	easel.RegisterBackend(BackendFixed, func() easel.Backend {
		return &Backend{name: BackendFixed}
	})
}

// gpuWaitTimeout bounds every fence wait. A driver that stalls longer
// than this is treated as failed, not waited on.
const gpuWaitTimeout = 5 * time.Second

var (
	errSurfaceKind  = errors.New("gpu: surface from another backend")
	errSurfaceFreed = errors.New("gpu: surface already freed")
	errSizeMismatch = errors.New("gpu: surface size mismatch")
	errNotReady     = errors.New("gpu: backend not initialized")
)

// Backend implements easel.Backend on top of wgpu/hal. One Backend
// owns one device (or borrows the host's), the compiled shader set,
// and the compositor; surfaces and rasterizers it creates stay bound
// to it.
type Backend struct {
	name      string
	floatMask bool

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	external bool

	shaders *shaderSet
	comp    *compositor
}

var _ easel.Backend = (*Backend)(nil)

// Name returns the backend mode identifier.
func (b *Backend) Name() string { return b.name }

// Init acquires the GPU device: the host-shared one when a provider is
// installed, otherwise a fresh Vulkan instance and adapter. Missing
// Vulkan support or an empty adapter list reports
// easel.ErrBackendUnavailable so construction falls through to the
// next mode.
func (b *Backend) Init() error {
	if device, queue, ok := sharedHAL(); ok {
		b.device = device
		b.queue = queue
		b.external = true
	} else if err := b.openDevice(); err != nil {
		return fmt.Errorf("%w: %v", easel.ErrBackendUnavailable, err)
	}

	shaders, err := newShaderSet(b.device)
	if err != nil {
		b.closeDevice()
		return fmt.Errorf("%w: %v", easel.ErrBackendUnavailable, err)
	}
	b.shaders = shaders
	b.comp = &compositor{backend: b}
	return nil
}

func (b *Backend) openDevice() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return errors.New("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	b.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		b.instance = nil
		return errors.New("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		b.instance = nil
		return fmt.Errorf("open device: %w", err)
	}
	b.device = openDev.Device
	b.queue = openDev.Queue
	easel.Logger().Info("gpu device opened",
		slog.String("backend", b.name),
		slog.String("adapter", selected.Info.Name))
	return nil
}

// Close releases the shader set, compositor resources, and the device
// unless it is host-owned.
func (b *Backend) Close() {
	if b.comp != nil {
		b.comp.destroy()
		b.comp = nil
	}
	if b.shaders != nil {
		b.shaders.destroy()
		b.shaders = nil
	}
	b.closeDevice()
}

func (b *Backend) closeDevice() {
	if b.external {
		b.device = nil
		b.queue = nil
		b.external = false
		return
	}
	if b.device != nil {
		b.device.Destroy()
		b.device = nil
	}
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
	b.queue = nil
}

// Surface is an RGBA8 render-attachment texture holding premultiplied
// pixels.
type Surface struct {
	backend *Backend
	tex     hal.Texture
	view    hal.TextureView
	width   int
	height  int
	freed   bool
}

var _ easel.Surface = (*Surface)(nil)

// Size returns the surface dimensions in pixels.
func (s *Surface) Size() (w, h int) { return s.width, s.height }

// Free releases the texture. Free is idempotent.
func (s *Surface) Free() {
	if s.freed {
		return
	}
	s.freed = true
	if s.view != nil {
		s.backend.device.DestroyTextureView(s.view)
		s.view = nil
	}
	if s.tex != nil {
		s.backend.device.DestroyTexture(s.tex)
		s.tex = nil
	}
}

// surface asserts that an easel.Surface belongs to this backend.
func (b *Backend) surface(s easel.Surface) (*Surface, error) {
	gs, ok := s.(*Surface)
	if !ok {
		return nil, errSurfaceKind
	}
	if gs.freed {
		return nil, errSurfaceFreed
	}
	return gs, nil
}

// createTexture allocates a 2D texture plus its default view.
func (b *Backend) createTexture(label string, w, h int, format gputypes.TextureFormat, usage gputypes.TextureUsage) (hal.Texture, hal.TextureView, error) {
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("gpu: create texture %s: %w", label, err)
	}
	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: label + "_view",
	})
	if err != nil {
		b.device.DestroyTexture(tex)
		return nil, nil, fmt.Errorf("gpu: create texture view %s: %w", label, err)
	}
	return tex, view, nil
}

// NewSurface creates a surface filled with the clear color.
func (b *Backend) NewSurface(w, h int, clear easel.RGBA) (easel.Surface, error) {
	if b.device == nil {
		return nil, errNotReady
	}
	tex, view, err := b.createTexture("easel_surface", w, h, gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding|
			gputypes.TextureUsageCopySrc|gputypes.TextureUsageCopyDst)
	if err != nil {
		return nil, err
	}
	s := &Surface{backend: b, tex: tex, view: view, width: w, height: h}
	if err := b.ClearSurface(s, clear); err != nil {
		s.Free()
		return nil, err
	}
	return s, nil
}

// ClearSurface fills dst with c via a load-op clear pass.
func (b *Backend) ClearSurface(dst easel.Surface, c easel.RGBA) error {
	s, err := b.surface(dst)
	if err != nil {
		return err
	}
	return b.encodePass(&renderPass{
		label:  "easel_clear",
		view:   s.view,
		format: gputypes.TextureFormatRGBA8Unorm,
		load:   gputypes.LoadOpClear,
		clear:  premulClearColor(c),
	})
}

// CopySurface overwrites dst with src's pixels.
func (b *Backend) CopySurface(dst, src easel.Surface) error {
	d, err := b.surface(dst)
	if err != nil {
		return err
	}
	s, err := b.surface(src)
	if err != nil {
		return err
	}
	if d.width != s.width || d.height != s.height {
		return errSizeMismatch
	}
	return b.encodePass(&renderPass{
		label:  "easel_copy",
		view:   d.view,
		format: gputypes.TextureFormatRGBA8Unorm,
		load:   gputypes.LoadOpClear,
		draws: []passDraw{{
			shader:  "quad",
			blend:   blendReplace,
			srcView: s.view,
			uniform: quadUniform(d.width, d.height, 1),
			verts:   fullscreenQuad(d.width, d.height),
			count:   6,
		}},
	})
}

// DrawPixmap composites CPU pixels into dst. Normal and eraser modes
// run on the GPU through a temporary texture; the remaining paint
// modes are not expressible with fixed-function blending, so they
// blend on the CPU between a readback and an upload.
func (b *Backend) DrawPixmap(dst easel.Surface, src *easel.Pixmap, opacity float64, mode easel.PaintMode) error {
	d, err := b.surface(dst)
	if err != nil {
		return err
	}
	if d.width != src.Width() || d.height != src.Height() {
		return errSizeMismatch
	}

	switch mode {
	case easel.ModeNormal, easel.ModeEraser:
		blend := blendOver
		if mode == easel.ModeEraser {
			blend = blendDstOut
		}
		tex, view, err := b.uploadPixmap("easel_drawpixmap", src)
		if err != nil {
			return err
		}
		defer func() {
			b.device.DestroyTextureView(view)
			b.device.DestroyTexture(tex)
		}()
		return b.encodePass(&renderPass{
			label:  "easel_drawpixmap",
			view:   d.view,
			format: gputypes.TextureFormatRGBA8Unorm,
			load:   gputypes.LoadOpLoad,
			draws: []passDraw{{
				shader:  "quad",
				blend:   blend,
				srcView: view,
				uniform: quadUniform(d.width, d.height, opacity),
				verts:   fullscreenQuad(d.width, d.height),
				count:   6,
			}},
		})
	default:
		pix, err := b.ReadPixels(dst)
		if err != nil {
			return err
		}
		easel.BlendPixmap(pix, src, opacity, mode)
		return b.WritePixels(dst, pix)
	}
}

// WritePixels overwrites dst with CPU pixels.
func (b *Backend) WritePixels(dst easel.Surface, src *easel.Pixmap) error {
	d, err := b.surface(dst)
	if err != nil {
		return err
	}
	if d.width != src.Width() || d.height != src.Height() {
		return errSizeMismatch
	}
	b.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: d.tex, MipLevel: 0},
		src.Data(),
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(d.width * 4),
			RowsPerImage: uint32(d.height),
		},
		&hal.Extent3D{Width: uint32(d.width), Height: uint32(d.height), DepthOrArrayLayers: 1},
	)
	return nil
}

// Composite blends the layer stack bottom-to-top into dst.
func (b *Backend) Composite(dst *easel.Pixmap, layers []easel.Layer) error {
	if b.comp == nil {
		return errNotReady
	}
	return b.comp.composite(dst, layers)
}

// ReadPixels reads a surface back into a new pixmap.
func (b *Backend) ReadPixels(src easel.Surface) (*easel.Pixmap, error) {
	s, err := b.surface(src)
	if err != nil {
		return nil, err
	}
	data, err := b.readTexture(s.tex, s.width, s.height)
	if err != nil {
		return nil, err
	}
	pix := easel.NewPixmap(s.width, s.height)
	copy(pix.Data(), data)
	return pix, nil
}

// ReadPixel reads one pixel, returning straight (unpremultiplied)
// color. The whole surface is read back; pixel probes on GPU surfaces
// are not cheap.
func (b *Backend) ReadPixel(src easel.Surface, x, y int) (easel.RGBA, error) {
	pix, err := b.ReadPixels(src)
	if err != nil {
		return easel.Transparent, err
	}
	if x < 0 || x >= pix.Width() || y < 0 || y >= pix.Height() {
		return easel.Transparent, errSizeMismatch
	}
	return pix.GetPixel(x, y), nil
}

// NewRasterizer creates the variant-appropriate rasterizer.
func (b *Backend) NewRasterizer(w, h int) (easel.Rasterizer, error) {
	if b.device == nil || b.shaders == nil {
		return nil, errNotReady
	}
	if b.floatMask {
		return newFloatRasterizer(b, w, h)
	}
	return newFixedRasterizer(b, w, h)
}

// uploadPixmap creates a sampleable texture holding the pixmap's
// premultiplied pixels.
func (b *Backend) uploadPixmap(label string, pix *easel.Pixmap) (hal.Texture, hal.TextureView, error) {
	w, h := pix.Width(), pix.Height()
	tex, view, err := b.createTexture(label, w, h, gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst)
	if err != nil {
		return nil, nil, err
	}
	b.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		pix.Data(),
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(w * 4), RowsPerImage: uint32(h)},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
	return tex, view, nil
}

// readTexture copies a texture into a staging buffer and reads the
// tight-packed RGBA bytes back. BytesPerRow is padded to the 256-byte
// copy pitch WebGPU requires, then stripped.
func (b *Backend) readTexture(tex hal.Texture, w, h int) ([]byte, error) {
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "easel_readback"})
	if err != nil {
		return nil, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("easel_readback"); err != nil {
		return nil, fmt.Errorf("gpu: begin encoding: %w", err)
	}

	bytesPerRow := uint32(w * 4)
	const copyPitchAlignment = 256
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "easel_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("gpu: create staging buffer: %w", err)
	}
	defer b.device.DestroyBuffer(staging)

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: uint32(h)},
		TextureBase:  hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	if err := b.submitEncoder(encoder); err != nil {
		return nil, err
	}

	readback := make([]byte, stagingSize)
	mapping, err := b.device.MapBuffer(staging, 0, stagingSize)
	if err != nil {
		return nil, fmt.Errorf("gpu: readback: %w", err)
	}
	copy(readback, unsafe.Slice((*byte)(mapping.Ptr), stagingSize))
	if err := b.device.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("gpu: readback: %w", err)
	}
	if alignedBytesPerRow == bytesPerRow {
		return readback[:uint64(bytesPerRow)*uint64(h)], nil
	}
	tight := make([]byte, uint64(bytesPerRow)*uint64(h))
	for row := 0; row < h; row++ {
		srcOff := row * int(alignedBytesPerRow)
		dstOff := row * int(bytesPerRow)
		copy(tight[dstOff:dstOff+int(bytesPerRow)], readback[srcOff:srcOff+int(bytesPerRow)])
	}
	return tight, nil
}

// submitEncoder ends the encoder, submits, and waits on a fence.
func (b *Backend) submitEncoder(encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	idx, err := b.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	deadline := time.Now().Add(gpuWaitTimeout)
	for b.queue.PollCompleted() < idx {
		if time.Now().After(deadline) {
			return fmt.Errorf("gpu: wait for GPU: timeout after %v", gpuWaitTimeout)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// passDraw is one draw of a render pass: a pipeline configuration, an
// optional sampled source texture, a uniform block, and vertex data.
type passDraw struct {
	shader  string
	blend   blendKind
	srcView hal.TextureView
	uniform []byte
	verts   []byte
	count   uint32
}

// renderPass describes one single-target render pass.
type renderPass struct {
	label  string
	view   hal.TextureView
	format gputypes.TextureFormat
	load   gputypes.LoadOp
	clear  gputypes.Color
	draws  []passDraw
}

// encodePass records, submits, and waits for one render pass,
// creating and destroying the transient per-draw buffers and bind
// groups around it.
func (b *Backend) encodePass(p *renderPass) error {
	type drawResources struct {
		uniformBuf hal.Buffer
		vertBuf    hal.Buffer
		bindGroup  hal.BindGroup
		pipeline   hal.RenderPipeline
		count      uint32
	}
	resources := make([]drawResources, 0, len(p.draws))
	defer func() {
		for _, r := range resources {
			if r.bindGroup != nil {
				b.device.DestroyBindGroup(r.bindGroup)
			}
			if r.vertBuf != nil {
				b.device.DestroyBuffer(r.vertBuf)
			}
			if r.uniformBuf != nil {
				b.device.DestroyBuffer(r.uniformBuf)
			}
		}
	}()

	for _, d := range p.draws {
		pipeline, err := b.shaders.pipeline(pipelineKey{shader: d.shader, format: p.format, blend: d.blend})
		if err != nil {
			return err
		}
		r := drawResources{pipeline: pipeline, count: d.count}

		r.uniformBuf, err = b.createAndUploadBuffer(p.label+"_uniform", d.uniform,
			gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
		if err != nil {
			return err
		}
		resources = append(resources, r)
		i := len(resources) - 1

		resources[i].vertBuf, err = b.createAndUploadBuffer(p.label+"_verts", d.verts,
			gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
		if err != nil {
			return err
		}

		entries := []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: resources[i].uniformBuf.NativeHandle(), Offset: 0, Size: uint64(len(d.uniform)),
			}},
		}
		layout := b.shaders.dabLayout
		if d.srcView != nil {
			layout = b.shaders.texLayout
			entries = append(entries,
				gputypes.BindGroupEntry{Binding: 1, Resource: gputypes.TextureViewBinding{
					TextureView: d.srcView.NativeHandle(),
				}},
				gputypes.BindGroupEntry{Binding: 2, Resource: gputypes.SamplerBinding{
					Sampler: b.shaders.nearest.NativeHandle(),
				}},
			)
		}
		resources[i].bindGroup, err = b.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   p.label + "_bind",
			Layout:  layout,
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("gpu: create bind group: %w", err)
		}
	}

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: p.label})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(p.label); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: p.label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       p.view,
			LoadOp:     p.load,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: p.clear,
		}},
	})
	for _, r := range resources {
		rp.SetPipeline(r.pipeline)
		rp.SetBindGroup(0, r.bindGroup, nil)
		rp.SetVertexBuffer(0, r.vertBuf, 0)
		rp.Draw(r.count, 1, 0, 0)
	}
	rp.End()

	return b.submitEncoder(encoder)
}

// createAndUploadBuffer creates a buffer and writes data into it.
func (b *Backend) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create buffer %s: %w", label, err)
	}
	b.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// premulClearColor converts a straight clear color to the
// premultiplied value surfaces store.
func premulClearColor(c easel.RGBA) gputypes.Color {
	return gputypes.Color{R: c.R * c.A, G: c.G * c.A, B: c.B * c.A, A: c.A}
}

// fullscreenQuad returns two triangles covering a w x h target with
// matching texture coordinates.
func fullscreenQuad(w, h int) []byte {
	fw, fh := float32(w), float32(h)
	verts := []float32{
		0, 0, 0, 0,
		fw, 0, 1, 0,
		fw, fh, 1, 1,
		0, 0, 0, 0,
		fw, fh, 1, 1,
		0, fh, 0, 1,
	}
	return packFloats(verts)
}

// quadUniform packs the quad shader's uniform block: viewport size and
// opacity, padded to 16 bytes.
func quadUniform(w, h int, opacity float64) []byte {
	return packFloats([]float32{float32(w), float32(h), float32(opacity), 0})
}

func packFloats(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
