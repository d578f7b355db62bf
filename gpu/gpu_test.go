package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/easel"
)

// crossBackendTolerance is the allowed per-channel difference between
// GPU and software output. Float interpolation and 8-bit blend
// rounding diverge by a couple of code values on feathered edges.
const crossBackendTolerance = 5

// openTestBackend initializes a raw backend of the given variant,
// skipping the test when no GPU device can be opened.
func openTestBackend(t *testing.T, name string) *Backend {
	t.Helper()
	b := &Backend{name: name, floatMask: name == BackendFloat}
	if err := b.Init(); err != nil {
		if errors.Is(err, easel.ErrBackendUnavailable) {
			t.Skipf("%s backend not available: %v", name, err)
		}
		t.Fatalf("Init(%s): %v", name, err)
	}
	t.Cleanup(b.Close)
	return b
}

// newScenePicture builds a picture on the single given mode, skipping
// when a GPU mode cannot open on this machine.
func newScenePicture(t *testing.T, mode string) *easel.Picture {
	t.Helper()
	p, err := easel.New("scene", 16, 16, 1, []string{mode}, -1)
	if err != nil {
		if mode != easel.BackendSoftware && errors.Is(err, easel.ErrNoBackend) {
			t.Skipf("%s backend not available: %v", mode, err)
		}
		t.Fatalf("New(%s): %v", mode, err)
	}
	t.Cleanup(p.Free)
	return p
}

func pushScene(t *testing.T, p *easel.Picture, events []easel.Event) {
	t.Helper()
	buf := easel.NewBuffer(1, easel.White, false)
	if err := p.AddBuffer(buf); err != nil {
		t.Fatalf("AddBuffer: %v", err)
	}
	alpha := easel.NewBuffer(2, easel.Transparent, true)
	if err := p.AddBuffer(alpha); err != nil {
		t.Fatalf("AddBuffer: %v", err)
	}
	for _, ev := range events {
		if err := p.PushEventTo(2, ev); err != nil {
			t.Fatalf("PushEventTo(%d/%d): %v", ev.Sid(), ev.SessionEventID(), err)
		}
	}
	if err := p.Display(); err != nil {
		t.Fatalf("Display: %v", err)
	}
}

func comparePixmaps(t *testing.T, got, want *easel.Pixmap, tolerance int) {
	t.Helper()
	if got.Width() != want.Width() || got.Height() != want.Height() {
		t.Fatalf("size mismatch: %dx%d vs %dx%d",
			got.Width(), got.Height(), want.Width(), want.Height())
	}
	gd, wd := got.Data(), want.Data()
	worst, worstAt := 0, -1
	for i := range wd {
		d := int(gd[i]) - int(wd[i])
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst, worstAt = d, i
		}
	}
	if worst > tolerance {
		x := (worstAt / 4) % got.Width()
		y := worstAt / 4 / got.Width()
		t.Errorf("pixel (%d,%d) channel %d differs by %d (got %d, want %d), tolerance %d",
			x, y, worstAt%4, worst, gd[worstAt], wd[worstAt], tolerance)
	}
}

// sceneEvents is a stroke-and-fill mix exercising coverage
// accumulation, partial pressure, fills, erasing, and the CPU
// fallback path for advanced paint modes.
func sceneEvents() []easel.Event {
	stroke := easel.NewBrushEvent(1, 1, easel.RGBA{R: 0.9, G: 0.2, B: 0.1, A: 1}, 3, 0.8, 0.5)
	stroke.AddCoord(2, 2, 0.4)
	stroke.AddCoord(8, 7, 1)
	stroke.AddCoord(13, 13, 0.7)

	fill := easel.NewFillEvent(1, 2, easel.RGBA{R: 0.1, G: 0.3, B: 0.8, A: 1}, 0.5)

	erase := easel.NewEraseEvent(1, 3, 2.5, 1, 0.7)
	erase.AddCoord(12, 3, 1)
	erase.AddCoord(4, 11, 1)

	tint := easel.NewBrushEvent(1, 4, easel.RGBA{R: 0.2, G: 0.9, B: 0.4, A: 1}, 4, 0.6, 0.2)
	tint.AddCoord(8, 8, 1)
	tint.SetPaintMode(easel.ModeMultiply)

	return []easel.Event{stroke, fill, erase, tint}
}

func TestBackend_SurfaceClearRead(t *testing.T) {
	for _, name := range []string{BackendFloat, BackendFixed} {
		t.Run(name, func(t *testing.T) {
			b := openTestBackend(t, name)

			surf, err := b.NewSurface(8, 8, easel.RGBA{R: 1, A: 1})
			if err != nil {
				t.Fatalf("NewSurface: %v", err)
			}
			defer surf.Free()

			got, err := b.ReadPixel(surf, 4, 4)
			if err != nil {
				t.Fatalf("ReadPixel: %v", err)
			}
			if got.R < 0.98 || got.G > 0.02 || got.A < 0.98 {
				t.Errorf("after clear to red: pixel = %+v", got)
			}

			if err := b.ClearSurface(surf, easel.RGBA{B: 1, A: 1}); err != nil {
				t.Fatalf("ClearSurface: %v", err)
			}
			pm, err := b.ReadPixels(surf)
			if err != nil {
				t.Fatalf("ReadPixels: %v", err)
			}
			if c := pm.GetPixel(0, 7); c.B < 0.98 || c.R > 0.02 {
				t.Errorf("after clear to blue: corner = %+v", c)
			}
		})
	}
}

func TestBackend_WriteReadPixels(t *testing.T) {
	b := openTestBackend(t, BackendFloat)

	src := easel.NewPixmap(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.SetPixel(x, y, easel.RGBA{R: float64(x) / 7, G: float64(y) / 7, A: 1})
		}
	}

	surf, err := b.NewSurface(8, 8, easel.Transparent)
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	defer surf.Free()
	if err := b.WritePixels(surf, src); err != nil {
		t.Fatalf("WritePixels: %v", err)
	}
	got, err := b.ReadPixels(surf)
	if err != nil {
		t.Fatalf("ReadPixels: %v", err)
	}
	comparePixmaps(t, got, src, 0)
}

func TestBackend_SizeMismatchRejected(t *testing.T) {
	b := openTestBackend(t, BackendFloat)

	surf, err := b.NewSurface(8, 8, easel.Transparent)
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	defer surf.Free()
	if err := b.WritePixels(surf, easel.NewPixmap(4, 4)); err == nil {
		t.Error("WritePixels accepted a mismatched pixmap")
	}
}

func TestBackend_Sanity(t *testing.T) {
	for _, name := range []string{BackendFloat, BackendFixed} {
		t.Run(name, func(t *testing.T) {
			b := openTestBackend(t, name)
			if !easel.RunSanityCheck(b) {
				t.Error("sanity check failed")
			}
		})
	}
}

func TestPicture_MatchesSoftware(t *testing.T) {
	ref := newScenePicture(t, easel.BackendSoftware)
	pushScene(t, ref, sceneEvents())

	for _, mode := range []string{BackendFloat, BackendFixed} {
		t.Run(mode, func(t *testing.T) {
			p := newScenePicture(t, mode)
			pushScene(t, p, sceneEvents())
			comparePixmaps(t, p.Element(), ref.Element(), crossBackendTolerance)
		})
	}
}

func TestPicture_UndoMatchesSoftware(t *testing.T) {
	run := func(t *testing.T, mode string) *easel.Picture {
		p := newScenePicture(t, mode)
		pushScene(t, p, sceneEvents())
		if ok, err := p.UndoLatest(1); err != nil || !ok {
			t.Fatalf("UndoLatest = %v, %v", ok, err)
		}
		if err := p.Display(); err != nil {
			t.Fatalf("Display: %v", err)
		}
		return p
	}
	ref := run(t, easel.BackendSoftware)
	for _, mode := range []string{BackendFloat, BackendFixed} {
		t.Run(mode, func(t *testing.T) {
			comparePixmaps(t, run(t, mode).Element(), ref.Element(), crossBackendTolerance)
		})
	}
}

func TestRasterizer_PartialResumeEqualsFullDraw(t *testing.T) {
	for _, name := range []string{BackendFloat, BackendFixed} {
		t.Run(name, func(t *testing.T) {
			b := openTestBackend(t, name)

			draw := func(progresses []float64) *easel.Pixmap {
				ev := easel.NewBrushEvent(1, 1, easel.Black, 2.5, 1, 0.6)
				ev.AddCoord(2, 2, 1)
				ev.AddCoord(8, 6, 0.5)
				ev.AddCoord(13, 13, 1)

				surf, err := b.NewSurface(16, 16, easel.Transparent)
				if err != nil {
					t.Fatalf("NewSurface: %v", err)
				}
				defer surf.Free()
				r, err := b.NewRasterizer(16, 16)
				if err != nil {
					t.Fatalf("NewRasterizer: %v", err)
				}
				defer r.Free()

				r.SetClip(easel.SurfaceRect(16, 16))
				for _, pr := range progresses {
					if err := r.DrawEvent(ev, pr); err != nil {
						t.Fatalf("DrawEvent(%g): %v", pr, err)
					}
				}
				if err := r.DrawWithColor(surf, easel.Black, 1, easel.ModeNormal); err != nil {
					t.Fatalf("DrawWithColor: %v", err)
				}
				pm, err := b.ReadPixels(surf)
				if err != nil {
					t.Fatalf("ReadPixels: %v", err)
				}
				return pm
			}

			full := draw([]float64{1})
			resumed := draw([]float64{1.0 / 3, 2.0 / 3, 1})
			comparePixmaps(t, resumed, full, 0)
		})
	}
}

func TestRasterizer_Mask(t *testing.T) {
	for _, name := range []string{BackendFloat, BackendFixed} {
		t.Run(name, func(t *testing.T) {
			b := openTestBackend(t, name)
			r, err := b.NewRasterizer(8, 8)
			if err != nil {
				t.Fatalf("NewRasterizer: %v", err)
			}
			defer r.Free()
			r.SetClip(easel.SurfaceRect(8, 8))

			pm, err := r.Mask()
			if err != nil {
				t.Fatalf("Mask: %v", err)
			}
			for i, v := range pm.Data() {
				if v != 0 {
					t.Fatalf("fresh mask not empty: byte %d = %d", i, v)
				}
			}

			ev := easel.NewBrushEvent(1, 1, easel.Black, 2, 1, 1)
			ev.AddCoord(4, 4, 1)
			if err := r.DrawEvent(ev, 1); err != nil {
				t.Fatalf("DrawEvent: %v", err)
			}
			pm, err = r.Mask()
			if err != nil {
				t.Fatalf("Mask: %v", err)
			}
			center := pm.Data()[(4*8+4)*4 : (4*8+4)*4+4]
			for k, v := range center {
				if v < 250 {
					t.Errorf("center channel %d = %d, want full coverage", k, v)
				}
			}
			if got := pm.Data()[(7*8)*4+3]; got != 0 {
				t.Errorf("corner coverage = %d, want 0", got)
			}
		})
	}
}

func TestUseDevice_NilClearsSharedProvider(t *testing.T) {
	UseDevice(nil)
	if _, _, ok := sharedHAL(); ok {
		t.Error("sharedHAL reported a device after UseDevice(nil)")
	}
}

// fakeProvider implements gpucontext.DeviceProvider but exposes no
// usable hal handles.
type fakeProvider struct{}

func (fakeProvider) Device() gpucontext.Device             { return nil }
func (fakeProvider) Queue() gpucontext.Queue               { return nil }
func (fakeProvider) Adapter() gpucontext.Adapter           { return nil }
func (fakeProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatRGBA8Unorm }
func (fakeProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{} }
func (fakeProvider) HalDevice() any                        { return nil }
func (fakeProvider) HalQueue() any                         { return nil }

func TestUseDevice_RejectsNilHandles(t *testing.T) {
	UseDevice(fakeProvider{})
	defer UseDevice(nil)
	if _, _, ok := sharedHAL(); ok {
		t.Error("sharedHAL accepted a provider with nil handles")
	}
}

func TestBackend_Name(t *testing.T) {
	for _, name := range []string{BackendFloat, BackendFixed} {
		b := &Backend{name: name}
		if got := b.Name(); got != name {
			t.Errorf("Name() = %q, want %q", got, name)
		}
	}
}
