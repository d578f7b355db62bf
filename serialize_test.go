package easel

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func buildSerializablePicture(t *testing.T) *Picture {
	t.Helper()
	p := newTestPicture(t, 8, 8)
	addTestBuffer(t, p, 1, White, false)
	b2 := addTestBuffer(t, p, 2, Transparent, true)
	b2.SetUndoStates(true)
	p.SetCurrentBufferIndex(0)

	if err := p.PushEventTo(1, NewFillEvent(1, 1, RGBA{1, 0, 0, 1}, 1)); err != nil {
		t.Fatal(err)
	}
	stroke := NewBrushEvent(1, 2, Black, 2.5, 0.75, 0.5)
	stroke.AddCoord(1, 1, 1)
	stroke.AddCoord(6, 6, 0.5)
	if err := p.PushEventTo(2, stroke); err != nil {
		t.Fatal(err)
	}
	if err := p.PushEventTo(2, NewMergeEvent(1, 3, 1, 0.5)); err != nil {
		t.Fatal(err)
	}
	undone := NewFillEvent(2, 1, RGBA{0, 0, 1, 1}, 1)
	if err := p.PushEventTo(2, undone); err != nil {
		t.Fatal(err)
	}
	if ok, err := p.UndoEventSessionID(2, 1); !ok || err != nil {
		t.Fatalf("undo = %v, %v", ok, err)
	}
	if err := b2.SetInsertionPoint(1); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSerialize_ParseRoundTrip(t *testing.T) {
	p := buildSerializablePicture(t)
	data := p.Serialize()

	q, trailer, err := Parse(data, softwareModes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer q.Free()
	if len(trailer) != 0 {
		t.Errorf("trailer = %v, want none", trailer)
	}

	// Structure survives.
	if q.BufferCount() != 2 {
		t.Fatalf("buffer count = %d", q.BufferCount())
	}
	qb2 := q.BufferByID(2)
	if qb2 == nil || qb2.EventCount() != 3 {
		t.Fatalf("buffer 2 events = %v", qb2)
	}
	if !qb2.UndoStates() {
		t.Error("undo states flag lost")
	}
	if qb2.InsertionPoint() != 1 {
		t.Errorf("insertion point = %d, want 1", qb2.InsertionPoint())
	}
	if !qb2.EventAt(2).Undone() {
		t.Error("undone flag lost")
	}
	if q.BufferByID(1).HasAlpha() {
		t.Error("hasAlpha flag lost")
	}

	// Serializing the parse reproduces the bytes exactly.
	if again := q.Serialize(); !bytes.Equal(again, data) {
		t.Errorf("double serialize drifted:\n%s\n%s", data, again)
	}

	// Pixels replay identically.
	if err := p.Display(); err != nil {
		t.Fatal(err)
	}
	if err := q.Display(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p.Element().Data(), q.Element().Data()) {
		t.Error("replayed pixels differ from the original")
	}
}

func TestSerialize_MetadataTrailer(t *testing.T) {
	p := newTestPicture(t, 4, 4)
	addTestBuffer(t, p, 1, Transparent, true)

	data := p.Serialize("author alice", "tool easel 1.0")
	if !strings.Contains(string(data), "\nmetadata\n") {
		t.Fatalf("missing metadata section:\n%s", data)
	}

	q, trailer, err := Parse(data, softwareModes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer q.Free()
	if len(trailer) != 2 || trailer[0] != "author alice" || trailer[1] != "tool easel 1.0" {
		t.Errorf("trailer = %q", trailer)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"bad header", "canvas 4 4\n"},
		{"zero dims", "picture 0 4\n"},
		{"negative dims", "picture -1 4\n"},
		{"event before buffer", "picture 4 4\nfill 1 1 normal 0 0 0 0 255 1\n"},
		{"unknown line", "picture 4 4\nbuffer 1 0 0 0 0 0 1 0\nwhatever\n"},
		{"short buffer line", "picture 4 4\nbuffer 1 0 0 0\n"},
		{"bad insertion point", "picture 4 4\nbuffer 1 0 0 0 0 0 1 7\n"},
		{"bad event", "picture 4 4\nbuffer 1 0 0 0 0 0 1 0\nfill 1 1 normal 0 0 0 0 255\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, err := Parse([]byte(tt.data), softwareModes())
			if !errors.Is(err, ErrMalformedPicture) {
				t.Errorf("err = %v, want ErrMalformedPicture", err)
			}
			if p != nil {
				t.Error("malformed input must not return a picture")
			}
		})
	}
}

func TestParse_CRLF(t *testing.T) {
	p := newTestPicture(t, 4, 4)
	addTestBuffer(t, p, 1, Transparent, true)
	data := bytes.ReplaceAll(p.Serialize(), []byte("\n"), []byte("\r\n"))

	q, _, err := Parse(data, softwareModes())
	if err != nil {
		t.Fatalf("Parse CRLF: %v", err)
	}
	q.Free()
}

func TestParse_WhitespaceLines(t *testing.T) {
	p := newTestPicture(t, 4, 4)
	addTestBuffer(t, p, 1, Transparent, true)
	if err := p.PushEventTo(1, NewFillEvent(1, 1, RGBA{1, 0, 0, 1}, 1)); err != nil {
		t.Fatal(err)
	}
	// Pad every line break with space- and tab-only lines.
	data := bytes.ReplaceAll(p.Serialize(), []byte("\n"), []byte("\n   \n\t\n"))

	q, _, err := Parse(data, softwareModes())
	if err != nil {
		t.Fatalf("Parse with whitespace lines: %v", err)
	}
	defer q.Free()
	if got := q.BufferByID(1).EventCount(); got != 1 {
		t.Errorf("event count = %d, want 1", got)
	}
}

func TestParse_MergeForwardReference(t *testing.T) {
	p := newTestPicture(t, 4, 4)
	// The merge's owner sits below its source in the stack, so the
	// source buffer serializes after the merge line that needs it.
	addTestBuffer(t, p, 1, Transparent, true)
	addTestBuffer(t, p, 2, Transparent, true)
	if err := p.PushEventTo(2, NewFillEvent(1, 1, RGBA{1, 0, 0, 1}, 1)); err != nil {
		t.Fatal(err)
	}
	if err := p.PushEventTo(1, NewMergeEvent(1, 2, 2, 1)); err != nil {
		t.Fatal(err)
	}

	q, _, err := Parse(p.Serialize(), softwareModes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer q.Free()

	// Hide the source; the merged copy alone must show its pixels.
	if err := q.SetBufferVisible(1, false); err != nil {
		t.Fatal(err)
	}
	got, err := q.PixelRGBA(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got.R < 0.99 || got.A < 0.99 {
		t.Errorf("forward-referenced merge pixel = %+v, want red", got)
	}
}

func TestParse_MergeMissingSource(t *testing.T) {
	doc := strings.Join([]string{
		"picture 4 4",
		"buffer 1 0 0 0 0 0 1 0",
		"merge 1 1 normal 0 9 1",
	}, "\n") + "\n"

	q, _, err := Parse([]byte(doc), softwareModes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer q.Free()

	b := q.BufferByID(1)
	if b == nil || b.EventCount() != 1 {
		t.Fatalf("buffer 1 = %v", b)
	}
	m, ok := b.EventAt(0).(*MergeEvent)
	if !ok {
		t.Fatalf("event = %T, want *MergeEvent", b.EventAt(0))
	}
	if m.Snapshot() != nil {
		t.Error("missing source must leave the snapshot unresolved")
	}
	// The unresolved merge draws nothing but the document stays usable.
	if err := q.Display(); err != nil {
		t.Errorf("Display: %v", err)
	}
}

func TestParse_MergeResolvedAgainstSerializedSource(t *testing.T) {
	p := newTestPicture(t, 4, 4)
	addTestBuffer(t, p, 1, Transparent, true)
	addTestBuffer(t, p, 2, Transparent, true)
	if err := p.PushEventTo(1, NewFillEvent(1, 1, RGBA{1, 0, 0, 1}, 1)); err != nil {
		t.Fatal(err)
	}
	if err := p.PushEventTo(2, NewMergeEvent(1, 2, 1, 1)); err != nil {
		t.Fatal(err)
	}

	q, _, err := Parse(p.Serialize(), softwareModes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer q.Free()
	if err := q.SetBufferVisible(0, false); err != nil {
		t.Fatal(err)
	}
	got, err := q.PixelRGBA(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got.R < 0.99 || got.A < 0.99 {
		t.Errorf("replayed merge pixel = %+v, want red", got)
	}

	// The serialized form records per-buffer sequences, so a parsed
	// merge re-captures the source buffer's whole serialized state,
	// including events committed after the original merge.
	if err := p.PushEventTo(1, NewFillEvent(1, 3, RGBA{0, 1, 0, 1}, 1)); err != nil {
		t.Fatal(err)
	}
	q2, _, err := Parse(p.Serialize(), softwareModes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer q2.Free()
	if err := q2.SetBufferVisible(0, false); err != nil {
		t.Fatal(err)
	}
	got, err = q2.PixelRGBA(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got.G < 0.99 {
		t.Errorf("merge after source edit = %+v, want green", got)
	}
}
