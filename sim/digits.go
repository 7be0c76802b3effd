package sim

import (
	"sync"

	"thermostep/core"
)

// glyphs maps a lit-segment pattern (bit 0 = a, bit 6 = g) to the
// character it reads as. The overflow code shares 0x3F with zero.
var glyphs = map[uint8]rune{
	0x00: ' ',
	0x3F: '0',
	0x06: '1',
	0x5B: '2',
	0x4F: '3',
	0x66: '4',
	0x6D: '5',
	0x7D: '6',
	0x07: '7',
	0x7F: '8',
	0x6F: '9',
	0x73: 'P',
	0x76: 'H',
	0x71: 'F',
	0x7C: 'b',
	0x39: 'C',
	0x79: 'E',
	0x40: '-',
}

// Glyph returns the character pattern p reads as, or '?'.
func Glyph(p uint8) rune {
	if r, ok := glyphs[p&0x7F]; ok {
		return r
	}
	return '?'
}

// Digits watches the multiplexed display lines and latches the segment
// pattern each time a digit is selected.
type Digits struct {
	gpio     *GPIO
	segments [8]core.GPIOPin
	left     core.GPIOPin
	right    core.GPIOPin

	mu      sync.Mutex
	latched [2]uint8
	frames  [2]uint32
	overlap uint32
}

// NewDigits starts watching gpio.
func NewDigits(gpio *GPIO, segments [8]core.GPIOPin, left, right core.GPIOPin) *Digits {
	d := &Digits{gpio: gpio, segments: segments, left: left, right: right}
	gpio.Watch(d.observe)
	return d
}

func (d *Digits) observe(pin core.GPIOPin, level bool) {
	if !level || (pin != d.left && pin != d.right) {
		return
	}
	levels := d.gpio.Levels(append(d.segments[:], d.left, d.right)...)
	var p uint8
	for i := 0; i < 8; i++ {
		if levels[i] {
			p |= 1 << i
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if levels[8] && levels[9] {
		d.overlap++
	}
	side := 0
	if pin == d.right {
		side = 1
	}
	d.latched[side] = p
	d.frames[side]++
}

// Patterns returns the last pattern shown on each digit.
func (d *Digits) Patterns() (left, right uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latched[0], d.latched[1]
}

// Text returns the two digits as characters, e.g. "72" or "EE".
func (d *Digits) Text() string {
	l, r := d.Patterns()
	return string([]rune{Glyph(l), Glyph(r)})
}

// Frames returns how many times each digit has been selected.
func (d *Digits) Frames() (left, right uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames[0], d.frames[1]
}

// Overlaps returns how many times both select lines were high at once.
func (d *Digits) Overlaps() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overlap
}
