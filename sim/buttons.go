package sim

import (
	"context"
	"errors"
	"time"

	"thermostep/core"
)

// ErrNoButton is returned for a button number outside 1..3.
var ErrNoButton = errors.New("sim: no such button")

// Presser plays an operator on the three active-high buttons.
type Presser struct {
	gpio *GPIO
	pins [3]core.GPIOPin

	// Hold is how long a press keeps the line high, Gap how long it
	// stays low before the next press. Both must exceed the button
	// task's sample period for every press to be seen.
	Hold time.Duration
	Gap  time.Duration
}

// NewPresser returns a presser with 30ms presses and 30ms gaps.
func NewPresser(gpio *GPIO, pins [3]core.GPIOPin) *Presser {
	return &Presser{gpio: gpio, pins: pins, Hold: 30 * time.Millisecond, Gap: 30 * time.Millisecond}
}

// Press presses button (1-based) times times. The line is low again
// when Press returns, even if ctx is cancelled.
func (p *Presser) Press(ctx context.Context, button, times int) error {
	if button < 1 || button > len(p.pins) {
		return ErrNoButton
	}
	pin := p.pins[button-1]
	defer p.gpio.Drive(pin, false)

	for i := 0; i < times; i++ {
		p.gpio.Drive(pin, true)
		if err := core.Delay(ctx, p.Hold); err != nil {
			return err
		}
		p.gpio.Drive(pin, false)
		if err := core.Delay(ctx, p.Gap); err != nil {
			return err
		}
	}
	return nil
}
