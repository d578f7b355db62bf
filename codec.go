package easel

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedEvent is returned when an event token line cannot be
// parsed.
var ErrMalformedEvent = errors.New("easel: malformed event line")

// eventParser decodes the token line of one event kind. The leading
// kind tag has already been consumed; fields holds the remaining tokens.
type eventParser func(fields []string) (Event, error)

// eventParsers maps kind tags to their parsers. Populated at init so
// each event kind registers next to its definition.
var eventParsers = map[string]eventParser{
	"draw":  parseBrushEvent,
	"fill":  parseFillEvent,
	"merge": parseMergeEvent,
}

// IsEventLine reports whether the first token of a serialized line names
// a known event kind.
func IsEventLine(kind string) bool {
	_, ok := eventParsers[kind]
	return ok
}

// ParseEvent decodes one serialized event token line.
func ParseEvent(fields []string) (Event, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedEvent)
	}
	parse, ok := eventParsers[fields[0]]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, fields[0])
	}
	return parse(fields[1:])
}

func parseBrushEvent(fields []string) (Event, error) {
	// sid eid mode undone r g b a radius opacity hardness [x y p]...
	if len(fields) < 11 {
		return nil, fmt.Errorf("%w: draw needs at least 11 fields, got %d", ErrMalformedEvent, len(fields))
	}
	hdr, err := parseHeaderTokens(fields[:4])
	if err != nil {
		return nil, err
	}
	c, err := parseColorTokens(fields[4:8])
	if err != nil {
		return nil, err
	}
	radius, err := parseFloat(fields[8])
	if err != nil {
		return nil, err
	}
	opacity, err := parseFloat(fields[9])
	if err != nil {
		return nil, err
	}
	hardness, err := parseFloat(fields[10])
	if err != nil {
		return nil, err
	}
	coords := fields[11:]
	if len(coords)%3 != 0 {
		return nil, fmt.Errorf("%w: draw coords not whole triples (%d values)", ErrMalformedEvent, len(coords))
	}

	ev := NewBrushEvent(hdr.sid, hdr.eid, c, radius, opacity, hardness)
	ev.mode = hdr.mode
	ev.undone = hdr.undone
	for i := 0; i+2 < len(coords); i += 3 {
		x, err := parseFloat(coords[i])
		if err != nil {
			return nil, err
		}
		y, err := parseFloat(coords[i+1])
		if err != nil {
			return nil, err
		}
		p, err := parseFloat(coords[i+2])
		if err != nil {
			return nil, err
		}
		ev.AddCoord(x, y, p)
	}
	return ev, nil
}

func parseFillEvent(fields []string) (Event, error) {
	// sid eid mode undone r g b a opacity
	if len(fields) != 9 {
		return nil, fmt.Errorf("%w: fill needs 9 fields, got %d", ErrMalformedEvent, len(fields))
	}
	hdr, err := parseHeaderTokens(fields[:4])
	if err != nil {
		return nil, err
	}
	c, err := parseColorTokens(fields[4:8])
	if err != nil {
		return nil, err
	}
	opacity, err := parseFloat(fields[8])
	if err != nil {
		return nil, err
	}
	ev := NewFillEvent(hdr.sid, hdr.eid, c, opacity)
	ev.mode = hdr.mode
	ev.undone = hdr.undone
	return ev, nil
}

func parseMergeEvent(fields []string) (Event, error) {
	// sid eid mode undone source opacity
	if len(fields) != 6 {
		return nil, fmt.Errorf("%w: merge needs 6 fields, got %d", ErrMalformedEvent, len(fields))
	}
	hdr, err := parseHeaderTokens(fields[:4])
	if err != nil {
		return nil, err
	}
	source, err := parseInt(fields[4])
	if err != nil {
		return nil, err
	}
	opacity, err := parseFloat(fields[5])
	if err != nil {
		return nil, err
	}
	ev := NewMergeEvent(hdr.sid, hdr.eid, source, opacity)
	ev.mode = hdr.mode
	ev.undone = hdr.undone
	return ev, nil
}

// appendHeaderTokens serializes the shared identity header:
// sid eid mode undone.
func appendHeaderTokens(t []string, h *eventHeader) []string {
	return append(t,
		formatInt(h.sid),
		formatInt(h.eid),
		h.mode.String(),
		formatBool(h.undone),
	)
}

func parseHeaderTokens(fields []string) (eventHeader, error) {
	var h eventHeader
	var err error
	if h.sid, err = parseInt(fields[0]); err != nil {
		return h, err
	}
	if h.eid, err = parseInt(fields[1]); err != nil {
		return h, err
	}
	mode, ok := ParsePaintMode(fields[2])
	if !ok {
		return h, fmt.Errorf("%w: unknown mode %q", ErrMalformedEvent, fields[2])
	}
	h.mode = mode
	if h.undone, err = parseBool(fields[3]); err != nil {
		return h, err
	}
	return h, nil
}

// appendColorTokens serializes a color as four base-10 bytes.
func appendColorTokens(t []string, c RGBA) []string {
	r, g, b, a := c.Bytes()
	return append(t,
		strconv.Itoa(int(r)),
		strconv.Itoa(int(g)),
		strconv.Itoa(int(b)),
		strconv.Itoa(int(a)),
	)
}

func parseColorTokens(fields []string) (RGBA, error) {
	var b [4]int64
	for i, f := range fields {
		v, err := parseInt(f)
		if err != nil {
			return Transparent, err
		}
		if v < 0 || v > 255 {
			return Transparent, fmt.Errorf("%w: color component %d out of range", ErrMalformedEvent, v)
		}
		b[i] = v
	}
	return RGBA{
		R: float64(b[0]) / 255,
		G: float64(b[1]) / 255,
		B: float64(b[2]) / 255,
		A: float64(b[3]) / 255,
	}, nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func parseInt(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad integer %q", ErrMalformedEvent, s)
	}
	return v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad float %q", ErrMalformedEvent, s)
	}
	return v, nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseBool(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, fmt.Errorf("%w: bad flag %q", ErrMalformedEvent, s)
}
