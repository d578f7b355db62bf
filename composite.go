package easel

import "github.com/gogpu/easel/internal/blend"

// blendFuncFor maps a paint mode to its premultiplied byte blender.
func blendFuncFor(mode PaintMode) blend.Func {
	switch mode {
	case ModeEraser:
		return blend.DestinationOut
	case ModeMultiply:
		return blend.Multiply
	case ModeScreen:
		return blend.Screen
	case ModeLighten:
		return blend.Lighten
	case ModeDarken:
		return blend.Darken
	default:
		return blend.SourceOver
	}
}

// BlendPixmap composites src over dst per the paint mode, scaling src by
// opacity. The pixmaps must have identical dimensions; mismatches are a
// no-op since callers create both from the same picture bounds.
func BlendPixmap(dst, src *Pixmap, opacity float64, mode PaintMode) {
	if dst.Width() != src.Width() || dst.Height() != src.Height() {
		return
	}
	fn := blendFuncFor(mode)
	d := dst.Data()
	s := src.Data()

	if opacity >= 1 {
		for i := 0; i < len(d); i += 4 {
			blend.Pixel(fn, d, i, s[i], s[i+1], s[i+2], s[i+3])
		}
		return
	}
	op := uint32(clamp255(opacity*255) + 0.5)
	for i := 0; i < len(d); i += 4 {
		sr := uint8(uint32(s[i]) * op / 255)
		sg := uint8(uint32(s[i+1]) * op / 255)
		sb := uint8(uint32(s[i+2]) * op / 255)
		sa := uint8(uint32(s[i+3]) * op / 255)
		blend.Pixel(fn, d, i, sr, sg, sb, sa)
	}
}
