package easel

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/easel/internal/blend"
)

// BackendSoftware is the mode name of the pure Go scanline backend.
const BackendSoftware = "software"

func init() {
	RegisterBackend(BackendSoftware, func() Backend { return &softwareBackend{} })
}

// Software backend errors.
var (
	errWrongSurface = errors.New("easel: surface does not belong to the software backend")
	errSizeMismatch = errors.New("easel: surface size mismatch")
)

// softwareBackend rasterizes with CPU coverage accumulation. It needs
// no initialization and can never be unavailable, which makes it the
// final fallback of every mode priority list.
type softwareBackend struct{}

func (*softwareBackend) Name() string { return BackendSoftware }

func (*softwareBackend) Init() error { return nil }

func (*softwareBackend) Close() {}

// softwareSurface is a Pixmap-backed surface.
type softwareSurface struct {
	pix   *Pixmap
	freed bool
}

func (s *softwareSurface) Size() (int, int) {
	return s.pix.Width(), s.pix.Height()
}

func (s *softwareSurface) Free() {
	s.freed = true
	s.pix = nil
}

func (b *softwareBackend) NewSurface(w, h int, clear RGBA) (Surface, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("easel: invalid surface size %dx%d", w, h)
	}
	pix := NewPixmap(w, h)
	pix.Clear(clear)
	return &softwareSurface{pix: pix}, nil
}

func (b *softwareBackend) NewRasterizer(w, h int) (Rasterizer, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("easel: invalid rasterizer size %dx%d", w, h)
	}
	return &softwareRasterizer{
		backend: b,
		width:   w,
		height:  h,
		mask:    make([]float32, w*h),
		clip:    SurfaceRect(w, h),
	}, nil
}

func (b *softwareBackend) ClearSurface(dst Surface, c RGBA) error {
	s, err := b.surface(dst)
	if err != nil {
		return err
	}
	s.pix.Clear(c)
	return nil
}

func (b *softwareBackend) CopySurface(dst, src Surface) error {
	d, err := b.surface(dst)
	if err != nil {
		return err
	}
	s, err := b.surface(src)
	if err != nil {
		return err
	}
	if d.pix.Width() != s.pix.Width() || d.pix.Height() != s.pix.Height() {
		return errSizeMismatch
	}
	d.pix.CopyFrom(s.pix)
	return nil
}

func (b *softwareBackend) DrawPixmap(dst Surface, src *Pixmap, opacity float64, mode PaintMode) error {
	d, err := b.surface(dst)
	if err != nil {
		return err
	}
	if src == nil {
		return nil
	}
	BlendPixmap(d.pix, src, opacity, mode)
	return nil
}

func (b *softwareBackend) WritePixels(dst Surface, src *Pixmap) error {
	d, err := b.surface(dst)
	if err != nil {
		return err
	}
	if src == nil || src.Width() != d.pix.Width() || src.Height() != d.pix.Height() {
		return errSizeMismatch
	}
	d.pix.CopyFrom(src)
	return nil
}

func (b *softwareBackend) Composite(dst *Pixmap, layers []Layer) error {
	dst.Clear(Transparent)
	for _, layer := range layers {
		if !layer.Visible || layer.Surface == nil {
			continue
		}
		s, err := b.surface(layer.Surface)
		if err != nil {
			return err
		}
		src := s.pix
		if layer.Live != nil {
			// Composite the live stroke into a copy so the committed
			// surface stays untouched. Only this one layer pays the
			// copy; the layers below blend as-is.
			src = s.pix.Clone()
			tmp := &softwareSurface{pix: src}
			err := layer.Live.Rasterizer.DrawWithColor(tmp, layer.Live.Color, layer.Live.Opacity, layer.Live.Mode)
			if err != nil {
				return err
			}
		}
		BlendPixmap(dst, src, 1, ModeNormal)
	}
	return nil
}

func (b *softwareBackend) ReadPixels(src Surface) (*Pixmap, error) {
	s, err := b.surface(src)
	if err != nil {
		return nil, err
	}
	return s.pix.Clone(), nil
}

func (b *softwareBackend) ReadPixel(src Surface, x, y int) (RGBA, error) {
	s, err := b.surface(src)
	if err != nil {
		return Transparent, err
	}
	return s.pix.GetPixel(x, y), nil
}

func (b *softwareBackend) surface(s Surface) (*softwareSurface, error) {
	ss, ok := s.(*softwareSurface)
	if !ok {
		return nil, errWrongSurface
	}
	if ss.freed || ss.pix == nil {
		return nil, errors.New("easel: surface already freed")
	}
	return ss, nil
}

// softwareRasterizer accumulates brush coverage into a float32 mask
// using smoothstep-edged circular dabs stamped along interpolated
// stroke segments.
type softwareRasterizer struct {
	backend *softwareBackend
	width   int
	height  int
	mask    []float32
	clip    Rect

	// Partial-draw state: stamping continues from lastCoord when
	// DrawEvent is called again with the same event and a higher
	// progress, so a resumed draw equals one full draw.
	lastEvent Event
	lastCoord int

	freed bool
}

func (r *softwareRasterizer) Clear() {
	for i := range r.mask {
		r.mask[i] = 0
	}
	r.lastEvent = nil
	r.lastCoord = 0
}

func (r *softwareRasterizer) SetClip(c Rect) {
	r.clip = c.Intersect(SurfaceRect(r.width, r.height))
}

func (r *softwareRasterizer) DrawEvent(ev Event, progress float64) error {
	if r.freed {
		return errors.New("easel: rasterizer already freed")
	}
	progress = clamp01(progress)

	switch e := ev.(type) {
	case *BrushEvent:
		r.drawBrush(e, progress)
	case *FillEvent:
		// A fill has a single sub-step; nothing is drawn until the
		// cutoff reaches it.
		if progress >= 1 {
			r.fillClip()
		}
	case *MergeEvent:
		// Merges replay through Backend.DrawPixmap, not the mask.
	default:
		return fmt.Errorf("easel: unknown event kind %q", ev.Kind())
	}
	return nil
}

// drawBrush stamps dabs for all whole coordinate triples up to the
// progress cutoff, continuing from the previous partial draw when the
// event matches.
func (r *softwareRasterizer) drawBrush(e *BrushEvent, progress float64) {
	n := e.CoordCount()
	if n == 0 {
		return
	}
	// The cutoff rounds down to whole triples; progress 1 means all.
	upTo := int(math.Floor(progress * float64(n)))
	if upTo > n {
		upTo = n
	}

	start := 0
	if r.lastEvent == Event(e) {
		start = r.lastCoord
	}
	if upTo <= start {
		return
	}

	for i := start; i < upTo; i++ {
		x, y, p := e.Coord(i)
		if i == 0 {
			r.stampDab(x, y, e.Radius()*p, e.Hardness())
			continue
		}
		px, py, pp := e.Coord(i - 1)
		r.stampSegment(Pt(px, py), pp, Pt(x, y), p, e.Radius(), e.Hardness())
	}

	r.lastEvent = e
	r.lastCoord = upTo
}

// stampSegment walks from a to b stamping dabs at sub-radius spacing,
// interpolating pressure along the way. The start point is excluded
// since the previous segment (or the initial dab) already stamped it.
func (r *softwareRasterizer) stampSegment(a Point, ap float64, b Point, bp float64, radius, hardness float64) {
	dist := a.Distance(b)
	spacing := math.Max(radius/2, 0.5)
	steps := int(math.Ceil(dist / spacing))
	if steps < 1 {
		steps = 1
	}
	for s := 1; s <= steps; s++ {
		t := float64(s) / float64(steps)
		pt := a.Lerp(b, t)
		p := ap + (bp-ap)*t
		r.stampDab(pt.X, pt.Y, radius*p, hardness)
	}
}

// stampDab accumulates one circular dab's coverage with max blending,
// which keeps restamping idempotent.
func (r *softwareRasterizer) stampDab(cx, cy, radius, hardness float64) {
	if radius <= 0 {
		return
	}
	// Edge feather: at hardness 1 only a 1px antialiasing rim, at
	// hardness 0 the falloff spans the whole radius.
	feather := math.Max(1, (1-hardness)*radius)

	bounds := Rect{}.growToInclude(cx, cy, radius).Intersect(r.clip)
	for y := bounds.Y0; y < bounds.Y1; y++ {
		for x := bounds.X0; x < bounds.X1; x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			cov := clamp01((radius + 0.5 - d) / feather)
			if cov <= 0 {
				continue
			}
			i := y*r.width + x
			if float32(cov) > r.mask[i] {
				r.mask[i] = float32(cov)
			}
		}
	}
}

// fillClip sets full coverage inside the clip rect.
func (r *softwareRasterizer) fillClip() {
	for y := r.clip.Y0; y < r.clip.Y1; y++ {
		row := y * r.width
		for x := r.clip.X0; x < r.clip.X1; x++ {
			r.mask[row+x] = 1
		}
	}
}

func (r *softwareRasterizer) DrawWithColor(dst Surface, c RGBA, opacity float64, mode PaintMode) error {
	s, err := r.backend.surface(dst)
	if err != nil {
		return err
	}
	w, h := s.Size()
	if w != r.width || h != r.height {
		return errSizeMismatch
	}

	fn := blendFuncFor(mode)
	pix := s.pix.Data()
	for y := r.clip.Y0; y < r.clip.Y1; y++ {
		for x := r.clip.X0; x < r.clip.X1; x++ {
			cov := float64(r.mask[y*r.width+x]) * opacity
			if cov <= 0 {
				continue
			}
			// Premultiplied source at the mask's coverage.
			sr := uint8(clamp255(c.R*c.A*cov*255) + 0.5)
			sg := uint8(clamp255(c.G*c.A*cov*255) + 0.5)
			sb := uint8(clamp255(c.B*c.A*cov*255) + 0.5)
			sa := uint8(clamp255(c.A*cov*255) + 0.5)
			blend.Pixel(fn, pix, (y*w+x)*4, sr, sg, sb, sa)
		}
	}
	return nil
}

func (r *softwareRasterizer) Mask() (*Pixmap, error) {
	if r.freed {
		return nil, errors.New("easel: rasterizer already freed")
	}
	pm := NewPixmap(r.width, r.height)
	pix := pm.Data()
	for y := r.clip.Y0; y < r.clip.Y1; y++ {
		for x := r.clip.X0; x < r.clip.X1; x++ {
			cov := float64(r.mask[y*r.width+x])
			if cov <= 0 {
				continue
			}
			v := uint8(clamp255(cov*255) + 0.5)
			i := (y*r.width + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, v
		}
	}
	return pm, nil
}

func (r *softwareRasterizer) CheckSanity() bool {
	return RunSanityCheck(r.backend)
}

func (r *softwareRasterizer) Free() {
	r.freed = true
	r.mask = nil
	r.lastEvent = nil
}
