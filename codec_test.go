package easel

import (
	"strings"
	"testing"
)

func TestParseEvent_BrushRoundTrip(t *testing.T) {
	ev := NewBrushEvent(2, 17, RGBA{1, 0, 0, 1}, 4.5, 0.8, 0.25)
	ev.AddCoord(1.5, 2.5, 1)
	ev.AddCoord(10.25, 3, 0.5)
	ev.SetUndone(true)

	parsed, err := ParseEvent(ev.Tokens())
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	got, ok := parsed.(*BrushEvent)
	if !ok {
		t.Fatalf("parsed kind = %T", parsed)
	}
	if got.Sid() != 2 || got.SessionEventID() != 17 {
		t.Errorf("identity = (%d, %d)", got.Sid(), got.SessionEventID())
	}
	if !got.Undone() {
		t.Error("undone flag lost")
	}
	if got.Radius() != 4.5 || got.Opacity() != 0.8 || got.Hardness() != 0.25 {
		t.Errorf("payload = radius %g opacity %g hardness %g", got.Radius(), got.Opacity(), got.Hardness())
	}
	if got.CoordCount() != 2 {
		t.Fatalf("coord count = %d", got.CoordCount())
	}
	x, y, p := got.Coord(1)
	if x != 10.25 || y != 3 || p != 0.5 {
		t.Errorf("coord 1 = (%g, %g, %g)", x, y, p)
	}
	// Re-serializing a parsed event reproduces the exact token line.
	if a, b := strings.Join(ev.Tokens(), " "), strings.Join(got.Tokens(), " "); a != b {
		t.Errorf("token line drifted:\n%s\n%s", a, b)
	}
}

func TestParseEvent_FillRoundTrip(t *testing.T) {
	ev := NewFillEvent(1, 3, RGBA{0, 0, 0, 1}, 1)
	parsed, err := ParseEvent(ev.Tokens())
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	got := parsed.(*FillEvent)
	if got.Opacity() != 1 || got.PaintColor() != (RGBA{0, 0, 0, 1}) {
		t.Errorf("fill = %+v opacity %g", got.PaintColor(), got.Opacity())
	}
}

func TestParseEvent_MergeRoundTrip(t *testing.T) {
	ev := NewMergeEvent(1, 9, 42, 0.75)
	parsed, err := ParseEvent(ev.Tokens())
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	got := parsed.(*MergeEvent)
	if got.SourceID() != 42 || got.Opacity() != 0.75 {
		t.Errorf("merge = source %d opacity %g", got.SourceID(), got.Opacity())
	}
	if got.Snapshot() != nil {
		t.Error("parsed merge must start without a snapshot")
	}
}

func TestParseEvent_EraserMode(t *testing.T) {
	ev := NewEraseEvent(1, 1, 3, 1, 1)
	ev.AddCoord(0, 0, 1)
	parsed, err := ParseEvent(ev.Tokens())
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if parsed.Mode() != ModeEraser {
		t.Errorf("mode = %v, want eraser", parsed.Mode())
	}
}

func TestParseEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"unknown kind", "spray 1 1 normal 0"},
		{"draw too short", "draw 1 1 normal 0 255 0 0 255 4"},
		{"draw ragged coords", "draw 1 1 normal 0 255 0 0 255 4 1 1 1 2"},
		{"fill wrong arity", "fill 1 1 normal 0 255 0 0 255"},
		{"merge wrong arity", "merge 1 1 normal 0 2"},
		{"bad mode", "fill 1 1 sparkle 0 255 0 0 255 1"},
		{"bad undone flag", "fill 1 1 normal 2 255 0 0 255 1"},
		{"color out of range", "fill 1 1 normal 0 300 0 0 255 1"},
		{"bad float", "fill 1 1 normal 0 255 0 0 255 abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEvent(strings.Fields(tt.line)); err == nil {
				t.Errorf("ParseEvent(%q) should fail", tt.line)
			}
		})
	}
}

func TestIsEventLine(t *testing.T) {
	for _, kind := range []string{"draw", "fill", "merge"} {
		if !IsEventLine(kind) {
			t.Errorf("IsEventLine(%q) = false", kind)
		}
	}
	if IsEventLine("buffer") || IsEventLine("picture") {
		t.Error("structural keywords must not be event kinds")
	}
}
