package easel

import "log/slog"

// sanitySize is the bitmap edge used for backend self-tests. Small
// enough that the draw+readback is a one-off cost at construction.
const sanitySize = 8

// RunSanityCheck draws one diagonal test stroke through a small scratch
// rasterizer, composites it into a scratch surface from b, reads the
// pixels back, and verifies that the stroke covered the center and left
// the far corner untouched. Backend implementations call this from
// their CheckSanity methods so every variant is judged by the same
// drawing.
func RunSanityCheck(b Backend) bool {
	ev := NewBrushEvent(0, 0, Black, 2, 1, 1)
	ev.AddCoord(1, 1, 1)
	ev.AddCoord(sanitySize-2, sanitySize-2, 1)

	dst, err := b.NewSurface(sanitySize, sanitySize, Transparent)
	if err != nil {
		Logger().Warn("sanity surface creation failed", slog.String("backend", b.Name()), slog.Any("err", err))
		return false
	}
	defer dst.Free()

	r, err := b.NewRasterizer(sanitySize, sanitySize)
	if err != nil {
		Logger().Warn("sanity rasterizer creation failed", slog.String("backend", b.Name()), slog.Any("err", err))
		return false
	}
	defer r.Free()

	r.SetClip(SurfaceRect(sanitySize, sanitySize))
	if err := r.DrawEvent(ev, 1); err != nil {
		return false
	}
	if err := r.DrawWithColor(dst, Black, 1, ModeNormal); err != nil {
		return false
	}

	center, err := b.ReadPixel(dst, sanitySize/2, sanitySize/2)
	if err != nil {
		return false
	}
	corner, err := b.ReadPixel(dst, 0, sanitySize-1)
	if err != nil {
		return false
	}

	// The diagonal stroke must cover the center solidly; the far corner
	// is more than a dab radius away from it and must stay empty.
	if center.A < 0.3 {
		Logger().Warn("sanity check: center pixel not covered",
			slog.String("backend", b.Name()), slog.Float64("alpha", center.A))
		return false
	}
	if corner.A > 0.02 {
		Logger().Warn("sanity check: stray coverage in corner",
			slog.String("backend", b.Name()), slog.Float64("alpha", corner.A))
		return false
	}
	return true
}
