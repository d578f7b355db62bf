package easel

import "testing"

func TestRect_Intersect(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want Rect
	}{
		{"overlap", Rect{0, 0, 10, 10}, Rect{5, 5, 15, 15}, Rect{5, 5, 10, 10}},
		{"contained", Rect{0, 0, 10, 10}, Rect{2, 3, 4, 5}, Rect{2, 3, 4, 5}},
		{"disjoint", Rect{0, 0, 5, 5}, Rect{6, 6, 10, 10}, Rect{}},
		{"touching edges", Rect{0, 0, 5, 5}, Rect{5, 0, 10, 5}, Rect{}},
		{"boundless clips to surface", Boundless(), SurfaceRect(8, 6), Rect{0, 0, 8, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Intersect(tt.b); got != tt.want {
				t.Errorf("Intersect = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRect_Union(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want Rect
	}{
		{"overlap", Rect{0, 0, 10, 10}, Rect{5, 5, 15, 15}, Rect{0, 0, 15, 15}},
		{"empty left", Rect{}, Rect{1, 2, 3, 4}, Rect{1, 2, 3, 4}},
		{"empty right", Rect{1, 2, 3, 4}, Rect{}, Rect{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Union(tt.b); got != tt.want {
				t.Errorf("Union = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRect_Contains(t *testing.T) {
	r := Rect{1, 1, 4, 4}
	if !r.Contains(1, 1) || !r.Contains(3, 3) {
		t.Error("interior pixels should be contained")
	}
	if r.Contains(4, 1) || r.Contains(1, 4) || r.Contains(0, 0) {
		t.Error("exclusive upper bound violated")
	}
}

func TestRect_Scaled(t *testing.T) {
	r := Rect{1, 1, 3, 3}
	if got := r.Scaled(2); got != (Rect{2, 2, 6, 6}) {
		t.Errorf("Scaled(2) = %+v", got)
	}
	// Fractional edges grow outward.
	if got := r.Scaled(1.5); got != (Rect{1, 1, 5, 5}) {
		t.Errorf("Scaled(1.5) = %+v", got)
	}
	if got := Boundless().Scaled(2); got != Boundless() {
		t.Errorf("boundless Scaled = %+v", got)
	}
	if got := (Rect{}).Scaled(2); got != (Rect{}) {
		t.Errorf("empty Scaled = %+v", got)
	}
}

func TestRect_Dimensions(t *testing.T) {
	r := Rect{2, 3, 7, 5}
	if r.Width() != 5 || r.Height() != 2 {
		t.Errorf("dims = %dx%d, want 5x2", r.Width(), r.Height())
	}
	if w := (Rect{5, 5, 2, 2}).Width(); w != 0 {
		t.Errorf("inverted rect width = %d, want 0", w)
	}
}
