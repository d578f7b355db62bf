package gpu

import (
	"bytes"
	"math"
	"testing"

	"github.com/gogpu/easel"
)

// tipPNG encodes a circular white-on-transparent tip image.
func tipPNG(t *testing.T, size int, radius float64) []byte {
	t.Helper()
	pm := easel.NewPixmap(size, size)
	c := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x)+0.5-c, float64(y)+0.5-c)
			if d <= radius {
				pm.SetPixel(x, y, easel.White)
			}
		}
	}
	var buf bytes.Buffer
	if err := pm.EncodePNG(&buf); err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	return buf.Bytes()
}

func TestLoadBrushTip(t *testing.T) {
	tip, err := LoadBrushTip(bytes.NewReader(tipPNG(t, 16, 5)))
	if err != nil {
		t.Fatalf("LoadBrushTip: %v", err)
	}
	if w, h := tip.Size(); w != 16 || h != 16 {
		t.Fatalf("Size = %dx%d, want 16x16", w, h)
	}

	pix := tip.Pixmap().Data()
	ci := (8*16 + 8) * 4
	for k := 0; k < 4; k++ {
		if pix[ci+k] < 254 {
			t.Errorf("center channel %d = %d, want full coverage", k, pix[ci+k])
		}
	}
	if got := pix[3]; got != 0 {
		t.Errorf("corner coverage = %d, want 0", got)
	}
}

func TestLoadBrushTip_Malformed(t *testing.T) {
	if _, err := LoadBrushTip(bytes.NewReader([]byte("not a png"))); err == nil {
		t.Error("LoadBrushTip accepted garbage input")
	}
}

func TestBrushTip_Resized(t *testing.T) {
	tip, err := LoadBrushTip(bytes.NewReader(tipPNG(t, 16, 6)))
	if err != nil {
		t.Fatalf("LoadBrushTip: %v", err)
	}
	small := tip.Resized(8, 8)
	if w, h := small.Size(); w != 8 || h != 8 {
		t.Fatalf("Resized size = %dx%d, want 8x8", w, h)
	}
	if c := small.Pixmap().GetPixel(4, 4); c.A < 0.9 {
		t.Errorf("resized center coverage = %g, want near 1", c.A)
	}
	if w, h := tip.Size(); w != 16 || h != 16 {
		t.Errorf("Resized mutated the original: %dx%d", w, h)
	}
}

func TestBackend_UploadTip(t *testing.T) {
	b := openTestBackend(t, BackendFloat)

	tip, err := LoadBrushTip(bytes.NewReader(tipPNG(t, 16, 5)))
	if err != nil {
		t.Fatalf("LoadBrushTip: %v", err)
	}
	surf, err := b.UploadTip(tip)
	if err != nil {
		t.Fatalf("UploadTip: %v", err)
	}
	defer surf.Free()

	got, err := b.ReadPixels(surf)
	if err != nil {
		t.Fatalf("ReadPixels: %v", err)
	}
	comparePixmaps(t, got, tip.Pixmap(), 0)
}
