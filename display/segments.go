// Package display drives the two-digit seven-segment display. Both
// digits share the eight segment lines and are multiplexed by two
// select lines; one task renders each digit.
package display

import "thermostep/control"

// Pattern is the on/off state of the segment lines, bit 0 = a.
type Pattern uint8

// Segments
const (
	SegA  Pattern = 1 << iota // top
	SegB                      // top right
	SegC                      // bottom right
	SegD                      // bottom
	SegE                      // bottom left
	SegF                      // top left
	SegG                      // middle
	SegDP                     // decimal point
)

// Blank lights nothing.
const Blank Pattern = 0

// OutOfRange is shown on both digits for a reading that does not fit
// in two digits.
const OutOfRange Pattern = SegG

var digitPatterns = [10]Pattern{
	SegA | SegB | SegC | SegD | SegE | SegF,        // 0
	SegB | SegC,                                    // 1
	SegA | SegB | SegD | SegE | SegG,               // 2
	SegA | SegB | SegC | SegD | SegG,               // 3
	SegB | SegC | SegF | SegG,                      // 4
	SegA | SegC | SegD | SegF | SegG,               // 5
	SegA | SegC | SegD | SegE | SegF | SegG,        // 6
	SegA | SegB | SegC,                             // 7
	SegA | SegB | SegC | SegD | SegE | SegF | SegG, // 8
	SegA | SegB | SegC | SegD | SegF | SegG,        // 9
}

// Reserved codes render as a letter on both digits.
var codePatterns = map[int]Pattern{
	control.CodeOverflow:              SegA | SegB | SegC | SegD | SegE | SegF, // O
	int(control.StatusMoveOnTemp):     SegA | SegB | SegE | SegF | SegG,        // P
	int(control.StatusMoveOnHumidity): SegB | SegC | SegE | SegF | SegG,        // H
	int(control.StatusRotateCW):       SegA | SegE | SegF | SegG,               // F
	int(control.StatusRotateCCW):      SegC | SegD | SegE | SegF | SegG,        // b
	int(control.StatusFullRotation):   SegA | SegD | SegE | SegF,               // C
	control.CodeEmergencyStop:         SegA | SegD | SegE | SegF | SegG,        // E
}

// Digit returns the pattern for d (0-9).
func Digit(d int) (Pattern, bool) {
	if d < 0 || d > 9 {
		return Blank, false
	}
	return digitPatterns[d], true
}

// Code returns the pattern for a reserved code.
func Code(code int) (Pattern, bool) {
	p, ok := codePatterns[code]
	return p, ok
}

// Side selects a digit.
type Side uint8

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Decode returns what side shows for m: the tens (Left) or ones
// (Right) digit of a reading, or the reserved-code pattern on both
// sides. Readings outside 0..99 show OutOfRange on both sides. ok is
// false for an empty message.
func Decode(m control.Message, side Side) (Pattern, bool) {
	if m.Reserved() {
		return Code(m.Code())
	}
	if m.Kind != control.KindReading {
		return Blank, false
	}

	v := m.Value()
	if v < 0 || v > 99 {
		return OutOfRange, true
	}
	if side == Left {
		return Digit(v / 10)
	}
	return Digit(v % 10)
}

// String renders p as the segment letters it lights, e.g. "bc".
func (p Pattern) String() string {
	if p == Blank {
		return "-"
	}
	const names = "abcdefgp"
	buf := make([]byte, 0, 8)
	for i := 0; i < 8; i++ {
		if p&(1<<i) != 0 {
			buf = append(buf, names[i])
		}
	}
	return string(buf)
}
