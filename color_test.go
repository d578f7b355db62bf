package easel

import (
	"image/color"
	"math"
	"testing"
)

func TestRGBA_PremultiplyRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		c    RGBA
	}{
		{"opaque red", RGBA{1, 0, 0, 1}},
		{"half alpha white", RGBA{1, 1, 1, 0.5}},
		{"quarter alpha mixed", RGBA{0.2, 0.4, 0.8, 0.25}},
		{"black", Black},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.c.Premultiply().Unpremultiply()
			if math.Abs(got.R-tt.c.R) > 1e-12 ||
				math.Abs(got.G-tt.c.G) > 1e-12 ||
				math.Abs(got.B-tt.c.B) > 1e-12 ||
				got.A != tt.c.A {
				t.Errorf("round trip = %+v, want %+v", got, tt.c)
			}
		})
	}
}

func TestRGBA_UnpremultiplyTransparent(t *testing.T) {
	got := RGBA{0.5, 0.5, 0.5, 0}.Unpremultiply()
	if got != Transparent {
		t.Errorf("Unpremultiply of zero alpha = %+v, want Transparent", got)
	}
}

func TestRGBA_Bytes(t *testing.T) {
	tests := []struct {
		name       string
		c          RGBA
		r, g, b, a uint8
	}{
		{"white", White, 255, 255, 255, 255},
		{"black", Black, 0, 0, 0, 255},
		{"half gray", RGBA{0.5, 0.5, 0.5, 1}, 127, 127, 127, 255},
		{"out of range clamps", RGBA{2, -1, 0.5, 1.5}, 255, 0, 127, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b, a := tt.c.Bytes()
			if r != tt.r || g != tt.g || b != tt.b || a != tt.a {
				t.Errorf("Bytes() = (%d %d %d %d), want (%d %d %d %d)",
					r, g, b, a, tt.r, tt.g, tt.b, tt.a)
			}
		})
	}
}

func TestFromColor(t *testing.T) {
	got := FromColor(color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	if got.R < 0.999 || got.G > 0.001 || got.B > 0.001 || got.A < 0.999 {
		t.Errorf("FromColor(red) = %+v", got)
	}
	if FromColor(color.NRGBA{}) != Transparent {
		t.Errorf("FromColor(zero) != Transparent")
	}
}

func TestRGBA_Scaled(t *testing.T) {
	c := RGBA{0.5, 0.5, 0.5, 0.8}
	if got := c.Scaled(0.5).A; math.Abs(got-0.4) > 1e-12 {
		t.Errorf("Scaled(0.5).A = %g, want 0.4", got)
	}
	if got := c.Scaled(10).A; got != 1 {
		t.Errorf("Scaled(10).A = %g, want 1", got)
	}
	if got := c.Scaled(-1).A; got != 0 {
		t.Errorf("Scaled(-1).A = %g, want 0", got)
	}
}
