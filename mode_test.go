package easel

import "testing"

func TestPaintMode_RoundTrip(t *testing.T) {
	for m := ModeNormal; m < numPaintModes; m++ {
		got, ok := ParsePaintMode(m.String())
		if !ok || got != m {
			t.Errorf("ParsePaintMode(%q) = %v, %v", m.String(), got, ok)
		}
	}
}

func TestParsePaintMode_Unknown(t *testing.T) {
	if _, ok := ParsePaintMode("dissolve"); ok {
		t.Error("unknown mode should not parse")
	}
}

func TestPaintMode_Valid(t *testing.T) {
	if !ModeDarken.Valid() {
		t.Error("ModeDarken should be valid")
	}
	if PaintMode(200).Valid() {
		t.Error("out of range mode should be invalid")
	}
}
