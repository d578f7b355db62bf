package gpu

import (
	"fmt"
	"image"
	_ "image/png"
	"io"

	"github.com/gogpu/easel"
)

// BrushTip is a grayscale tip shape decoded from an image, stored as
// premultiplied white coverage. Hosts load tips once, resize them to
// the stroke radius, and upload them for custom dab pipelines.
type BrushTip struct {
	pm *easel.Pixmap
}

// LoadBrushTip decodes a tip image from r. Coverage is the luminance
// of the premultiplied pixel, so white-on-transparent and
// white-on-black tips both load with the same result.
func LoadBrushTip(r io.Reader) (*BrushTip, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("gpu: decoding brush tip: %w", err)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("gpu: empty brush tip image")
	}

	pm := easel.NewPixmap(w, h)
	pix := pm.Data()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cr, cg, cb, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			lum := (299*cr + 587*cg + 114*cb) / 1000
			v := uint8(lum >> 8)
			i := (y*w + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, v
		}
	}
	return &BrushTip{pm: pm}, nil
}

// Size returns the tip dimensions in pixels.
func (t *BrushTip) Size() (w, h int) {
	return t.pm.Width(), t.pm.Height()
}

// Pixmap returns the tip's coverage pixels.
func (t *BrushTip) Pixmap() *easel.Pixmap {
	return t.pm
}

// Resized returns a copy resampled to w x h.
func (t *BrushTip) Resized(w, h int) *BrushTip {
	return &BrushTip{pm: t.pm.Resample(w, h)}
}

// UploadTip places the tip's coverage in a sampleable surface on this
// backend. The caller owns the returned surface.
func (b *Backend) UploadTip(t *BrushTip) (easel.Surface, error) {
	w, h := t.Size()
	surf, err := b.NewSurface(w, h, easel.Transparent)
	if err != nil {
		return nil, err
	}
	if err := b.WritePixels(surf, t.pm); err != nil {
		surf.Free()
		return nil, err
	}
	return surf, nil
}
