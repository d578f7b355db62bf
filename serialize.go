package easel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrMalformedPicture is returned when Parse cannot reconstruct a
// Picture from serialized text.
var ErrMalformedPicture = errors.New("easel: malformed picture data")

// Serialize writes the picture to its line-oriented text form:
//
//	picture <width> <height>
//	buffer <id> <r> <g> <b> <a> <hasUndoStates> <hasAlpha> <insertionPoint>
//	<event token lines belonging to the preceding buffer>
//	...
//	metadata
//	<trailer lines, verbatim>
//
// The metadata section appears only when trailer lines are given.
// Dimensions and event coordinates are written in bitmap space, so
// Parse reconstructs at scale 1.
func (p *Picture) Serialize(trailer ...string) []byte {
	var sb strings.Builder
	sb.WriteString("picture ")
	sb.WriteString(strconv.Itoa(p.bitmapW))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.bitmapH))
	sb.WriteByte('\n')

	for _, b := range p.buffers {
		tokens := []string{"buffer", formatInt(b.ID())}
		tokens = appendColorTokens(tokens, b.ClearColor())
		tokens = append(tokens,
			formatBool(b.UndoStates()),
			formatBool(b.HasAlpha()),
			strconv.Itoa(b.InsertionPoint()),
		)
		sb.WriteString(strings.Join(tokens, " "))
		sb.WriteByte('\n')

		for i := 0; i < b.EventCount(); i++ {
			sb.WriteString(strings.Join(b.EventAt(i).Tokens(), " "))
			sb.WriteByte('\n')
		}
	}

	if len(trailer) > 0 {
		sb.WriteString("metadata\n")
		for _, line := range trailer {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return []byte(sb.String())
}

// Parse reconstructs a Picture from serialized text, trying the given
// backend modes in order. Events replay buffer by buffer in serialized
// order; a merge event re-captures its snapshot from the source
// buffer's replayed state, which includes any source events that were
// committed after the merge originally was. A merge may reference a
// buffer serialized later in the document; its snapshot resolves once
// every buffer has loaded. A source missing from the document leaves
// the merge drawing nothing. The trailer holds any lines after a
// literal metadata line, verbatim.
//
// Malformed input returns a nil Picture and an error wrapping
// ErrMalformedPicture; no partially constructed picture escapes.
func Parse(data []byte, modes []string) (p *Picture, trailer []string, err error) {
	lines := splitLines(string(data))
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("%w: empty input", ErrMalformedPicture)
	}

	fields := strings.Fields(lines[0])
	if len(fields) < 3 || fields[0] != "picture" {
		return nil, nil, fmt.Errorf("%w: bad header %q", ErrMalformedPicture, lines[0])
	}
	width, werr := strconv.Atoi(fields[1])
	height, herr := strconv.Atoi(fields[2])
	if werr != nil || herr != nil || width <= 0 || height <= 0 {
		return nil, nil, fmt.Errorf("%w: bad dimensions %q", ErrMalformedPicture, lines[0])
	}

	p, err = New(uuid.NewString(), width, height, 1, modes, -1)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err != nil {
			p.Free()
			p = nil
			trailer = nil
		}
	}()

	// (buffer, serialized insertion point) pairs, applied after the
	// buffer's events are in so the index is validatable.
	type pendingPoint struct {
		buffer *Buffer
		point  int
	}
	var points []pendingPoint

	// Merges whose source buffer is serialized after their own: the
	// snapshot resolves once every buffer is constructed.
	type forwardMerge struct {
		buffer *Buffer
		event  *MergeEvent
		index  int
	}
	var merges []forwardMerge
	var current *Buffer

	for n := 1; n < len(lines); n++ {
		line := lines[n]
		fields = strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch {
		case fields[0] == "metadata":
			trailer = append(trailer, lines[n+1:]...)
			n = len(lines)

		case fields[0] == "buffer":
			current, err = parseBufferLine(fields)
			if err != nil {
				return nil, nil, err
			}
			if err = p.AddBuffer(current); err != nil {
				return nil, nil, err
			}
			points = append(points, pendingPoint{buffer: current, point: mustAtoi(fields[8])})

		case IsEventLine(fields[0]):
			if current == nil {
				return nil, nil, fmt.Errorf("%w: event before any buffer at line %d", ErrMalformedPicture, n+1)
			}
			var ev Event
			ev, err = ParseEvent(fields)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: line %d: %v", ErrMalformedPicture, n+1, err)
			}
			if m, ok := ev.(*MergeEvent); ok && p.BufferByID(m.SourceID()) == nil {
				// The source buffer comes later in the document, or
				// not at all. Push with the snapshot unresolved and
				// capture it after all buffers are in.
				m.Scale(p.scale)
				merges = append(merges, forwardMerge{buffer: current, event: m, index: current.EventCount()})
				if err = current.PushEvent(m, p.genericRasterizer); err != nil {
					return nil, nil, err
				}
			} else if err = p.PushEventTo(current.ID(), ev); err != nil {
				return nil, nil, err
			}

		default:
			return nil, nil, fmt.Errorf("%w: unrecognized line %d %q", ErrMalformedPicture, n+1, line)
		}
	}

	// Forward-referenced merges capture the source buffer's fully
	// replayed state, the same capture an in-order merge gets. A source
	// missing from the document leaves the snapshot nil; the merge then
	// draws nothing on replay.
	for _, fm := range merges {
		src := p.BufferByID(fm.event.SourceID())
		if src == nil || src.Surface() == nil {
			continue
		}
		var pix *Pixmap
		pix, err = p.backend.ReadPixels(src.Surface())
		if err != nil {
			return nil, nil, err
		}
		fm.event.SetSnapshot(pix)
		fm.buffer.invalidateSnapshots(fm.index)
		if err = fm.buffer.replay(p.genericRasterizer); err != nil {
			return nil, nil, err
		}
	}

	for _, pp := range points {
		if err = pp.buffer.SetInsertionPoint(pp.point); err != nil {
			return nil, nil, fmt.Errorf("%w: insertion point %d out of range for buffer %d",
				ErrMalformedPicture, pp.point, pp.buffer.ID())
		}
	}
	return p, trailer, nil
}

// parseBufferLine decodes
// buffer <id> <r> <g> <b> <a> <hasUndoStates> <hasAlpha> <insertionPoint>.
func parseBufferLine(fields []string) (*Buffer, error) {
	if len(fields) != 9 {
		return nil, fmt.Errorf("%w: buffer line needs 9 fields, got %d", ErrMalformedPicture, len(fields))
	}
	id, err := parseInt(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPicture, err)
	}
	clear, err := parseColorTokens(fields[2:6])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPicture, err)
	}
	undoStates, err := parseBool(fields[6])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPicture, err)
	}
	hasAlpha, err := parseBool(fields[7])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPicture, err)
	}
	if _, err := strconv.Atoi(fields[8]); err != nil {
		return nil, fmt.Errorf("%w: bad insertion point %q", ErrMalformedPicture, fields[8])
	}

	b := NewBuffer(id, clear, hasAlpha)
	b.SetUndoStates(undoStates)
	return b, nil
}

// splitLines splits on \n, tolerating \r\n.
func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// mustAtoi converts a field already validated by parseBufferLine.
func mustAtoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
