// Package blend implements the compositing operators used by the easel
// engine: the Porter-Duff operators needed for painting and erasing,
// plus the separable blend modes exposed as paint modes.
//
// All operations work on premultiplied alpha values in the range 0-255,
// following WebGPU conventions so the CPU path and the GPU shader path
// compute the same arithmetic.
//
// References:
//   - Porter-Duff: "Compositing Digital Images" (1984)
//   - W3C Compositing and Blending Level 1: https://www.w3.org/TR/compositing-1/
package blend

// Func is the signature for blend operations. All values are
// premultiplied alpha, 0-255.
// Parameters:
//   - sr, sg, sb, sa: source color (red, green, blue, alpha)
//   - dr, dg, db, da: destination color
//
// Returns: resulting premultiplied color after blending.
type Func func(sr, sg, sb, sa, dr, dg, db, da uint8) (r, g, b, a uint8)

// mul8 computes (a*b)/255 with rounding, the standard fixed-point
// multiply for 8-bit premultiplied compositing.
func mul8(a, b uint8) uint8 {
	t := uint32(a)*uint32(b) + 128
	return uint8((t + (t >> 8)) >> 8)
}

// clampAdd8 adds two bytes, clamping to 255.
func clampAdd8(a, b uint8) uint8 {
	s := uint32(a) + uint32(b)
	if s > 255 {
		return 255
	}
	return uint8(s)
}

// SourceOver is the default painting operator: S + D*(1-Sa).
func SourceOver(sr, sg, sb, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
	inv := 255 - sa
	return clampAdd8(sr, mul8(dr, inv)),
		clampAdd8(sg, mul8(dg, inv)),
		clampAdd8(sb, mul8(db, inv)),
		clampAdd8(sa, mul8(da, inv))
}

// DestinationOut erases: D*(1-Sa). Only the source alpha matters, which
// is exactly what an eraser stroke needs.
func DestinationOut(_, _, _, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
	inv := 255 - sa
	return mul8(dr, inv), mul8(dg, inv), mul8(db, inv), mul8(da, inv)
}

// Multiply darkens: S*D + S*(1-Da) + D*(1-Sa).
func Multiply(sr, sg, sb, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
	invSa := 255 - sa
	invDa := 255 - da
	blendChannel := func(s, d uint8) uint8 {
		return clampAdd8(clampAdd8(mul8(s, d), mul8(s, invDa)), mul8(d, invSa))
	}
	return blendChannel(sr, dr),
		blendChannel(sg, dg),
		blendChannel(sb, db),
		clampAdd8(sa, mul8(da, invSa))
}

// Screen lightens: S + D - S*D. The sum can exceed 255 before the
// product is subtracted, so the channel math runs in 32 bits.
func Screen(sr, sg, sb, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
	blendChannel := func(s, d uint8) uint8 {
		v := uint32(s) + uint32(d) - uint32(mul8(s, d))
		if v > 255 {
			v = 255
		}
		return uint8(v)
	}
	invSa := 255 - sa
	return blendChannel(sr, dr),
		blendChannel(sg, dg),
		blendChannel(sb, db),
		clampAdd8(sa, mul8(da, invSa))
}

// Lighten keeps the per-channel maximum of S over D and D over S.
func Lighten(sr, sg, sb, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
	invSa := 255 - sa
	invDa := 255 - da
	blendChannel := func(s, d uint8) uint8 {
		over := clampAdd8(s, mul8(d, invSa))
		under := clampAdd8(d, mul8(s, invDa))
		if over > under {
			return over
		}
		return under
	}
	return blendChannel(sr, dr),
		blendChannel(sg, dg),
		blendChannel(sb, db),
		clampAdd8(sa, mul8(da, invSa))
}

// Darken keeps the per-channel minimum of S over D and D over S.
func Darken(sr, sg, sb, sa, dr, dg, db, da uint8) (uint8, uint8, uint8, uint8) {
	invSa := 255 - sa
	invDa := 255 - da
	blendChannel := func(s, d uint8) uint8 {
		over := clampAdd8(s, mul8(d, invSa))
		under := clampAdd8(d, mul8(s, invDa))
		if over < under {
			return over
		}
		return under
	}
	return blendChannel(sr, dr),
		blendChannel(sg, dg),
		blendChannel(sb, db),
		clampAdd8(sa, mul8(da, invSa))
}

// Pixel applies fn to one premultiplied RGBA pixel in dst at offset i,
// with the premultiplied source components given.
func Pixel(fn Func, dst []uint8, i int, sr, sg, sb, sa uint8) {
	r, g, b, a := fn(sr, sg, sb, sa, dst[i], dst[i+1], dst[i+2], dst[i+3])
	dst[i], dst[i+1], dst[i+2], dst[i+3] = r, g, b, a
}
