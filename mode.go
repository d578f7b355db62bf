package easel

import "fmt"

// PaintMode selects how an event's pixels combine with the pixels below
// them. Modes apply both when an event is rasterized into its buffer and
// when buffer surfaces are composited for display.
type PaintMode uint8

const (
	// ModeNormal is premultiplied source-over compositing.
	ModeNormal PaintMode = iota

	// ModeEraser removes destination alpha where the event painted
	// (Porter-Duff destination-out). Erasing into a buffer without an
	// alpha channel is coerced to ModeNormal at render time.
	ModeEraser

	// ModeMultiply darkens by multiplying source and destination.
	ModeMultiply

	// ModeScreen lightens by inverting, multiplying, and inverting again.
	ModeScreen

	// ModeLighten keeps the per-channel maximum.
	ModeLighten

	// ModeDarken keeps the per-channel minimum.
	ModeDarken

	numPaintModes // sentinel, keep last
)

// modeNames maps PaintMode values to their serialized names.
var modeNames = [...]string{
	ModeNormal:   "normal",
	ModeEraser:   "eraser",
	ModeMultiply: "multiply",
	ModeScreen:   "screen",
	ModeLighten:  "lighten",
	ModeDarken:   "darken",
}

// String returns the serialized name of the mode.
func (m PaintMode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("unknown(%d)", uint8(m))
}

// Valid reports whether m is a known paint mode.
func (m PaintMode) Valid() bool {
	return m < numPaintModes
}

// ParsePaintMode parses a serialized mode name. Unknown names return
// ModeNormal and false.
func ParsePaintMode(s string) (PaintMode, bool) {
	for i, name := range modeNames {
		if s == name {
			return PaintMode(i), true
		}
	}
	return ModeNormal, false
}
