// Package sim is a host-side stand-in for the board: GPIO lines, the
// HDC1080 on its I2C bus, an operator pressing buttons, a terminal
// rendering of the display and Lua-scripted scenarios.
package sim

import (
	"errors"
	"strconv"
	"sync"

	"thermostep/core"
)

// Pin modes
const (
	ModeUnconfigured = iota
	ModeInput
	ModeOutput
)

var (
	ErrNotOutput = errors.New("sim: pin not configured as output")
	ErrNotInput  = errors.New("sim: pin not configured")
)

// PinError reports which pin an operation failed on.
type PinError struct {
	Pin core.GPIOPin
	Err error
}

func (e *PinError) Error() string {
	return e.Err.Error() + " (pin " + strconv.Itoa(int(e.Pin)) + ")"
}

func (e *PinError) Unwrap() error {
	return e.Err
}

// Watcher is called after every level change, outside the GPIO lock.
type Watcher func(pin core.GPIOPin, level bool)

// GPIO implements core.GPIODriver in memory. Outputs are set by the
// code under test; inputs are driven from outside with Drive.
type GPIO struct {
	mu       sync.Mutex
	modes    map[core.GPIOPin]int
	levels   map[core.GPIOPin]bool
	writes   map[core.GPIOPin]int
	watchers []Watcher
}

// NewGPIO returns a GPIO bank with every pin unconfigured and low.
func NewGPIO() *GPIO {
	return &GPIO{
		modes:  make(map[core.GPIOPin]int),
		levels: make(map[core.GPIOPin]bool),
		writes: make(map[core.GPIOPin]int),
	}
}

func (g *GPIO) ConfigureOutput(pin core.GPIOPin) error {
	g.mu.Lock()
	g.modes[pin] = ModeOutput
	g.mu.Unlock()
	return nil
}

func (g *GPIO) ConfigureInput(pin core.GPIOPin) error {
	g.mu.Lock()
	g.modes[pin] = ModeInput
	g.mu.Unlock()
	return nil
}

func (g *GPIO) SetPin(pin core.GPIOPin, value bool) error {
	g.mu.Lock()
	if g.modes[pin] != ModeOutput {
		g.mu.Unlock()
		return &PinError{Pin: pin, Err: ErrNotOutput}
	}
	g.writes[pin]++
	changed := g.levels[pin] != value
	g.levels[pin] = value
	watchers := g.watchers
	g.mu.Unlock()

	if changed {
		for _, w := range watchers {
			w(pin, value)
		}
	}
	return nil
}

func (g *GPIO) GetPin(pin core.GPIOPin) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.modes[pin] == ModeUnconfigured {
		return false, &PinError{Pin: pin, Err: ErrNotInput}
	}
	return g.levels[pin], nil
}

// Drive sets the level seen on an input pin.
func (g *GPIO) Drive(pin core.GPIOPin, value bool) {
	g.mu.Lock()
	changed := g.levels[pin] != value
	g.levels[pin] = value
	watchers := g.watchers
	g.mu.Unlock()

	if changed {
		for _, w := range watchers {
			w(pin, value)
		}
	}
}

// Level returns the current level of pin regardless of mode.
func (g *GPIO) Level(pin core.GPIOPin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin]
}

// Levels returns the levels of pins, in order.
func (g *GPIO) Levels(pins ...core.GPIOPin) []bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]bool, len(pins))
	for i, pin := range pins {
		out[i] = g.levels[pin]
	}
	return out
}

// Mode returns the configured mode of pin.
func (g *GPIO) Mode(pin core.GPIOPin) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.modes[pin]
}

// Writes returns how many times SetPin was called on pin.
func (g *GPIO) Writes(pin core.GPIOPin) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writes[pin]
}

// Watch registers w for level changes.
func (g *GPIO) Watch(w Watcher) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.watchers = append(g.watchers[:len(g.watchers):len(g.watchers)], w)
}
