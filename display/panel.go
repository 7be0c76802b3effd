package display

import "thermostep/core"

// Panel owns the segment and digit-select lines. It is not safe for
// concurrent use; the display semaphore serializes the two tasks.
type Panel struct {
	gpio     core.GPIODriver
	segments [8]core.GPIOPin // a b c d e f g dp
	left     core.GPIOPin
	right    core.GPIOPin
}

// NewPanel configures every line as an output, driven low.
func NewPanel(gpio core.GPIODriver, segments [8]core.GPIOPin, left, right core.GPIOPin) (*Panel, error) {
	if err := core.ConfigureOutputs(gpio, segments[:]...); err != nil {
		return nil, err
	}
	if err := core.ConfigureOutputs(gpio, left, right); err != nil {
		return nil, err
	}
	return &Panel{gpio: gpio, segments: segments, left: left, right: right}, nil
}

// Show selects side and drives p onto the segment lines.
func (p *Panel) Show(side Side, pat Pattern) error {
	// deselect first so the old pattern never flashes on the new digit
	if err := p.gpio.SetPin(p.left, false); err != nil {
		return err
	}
	if err := p.gpio.SetPin(p.right, false); err != nil {
		return err
	}
	for i, pin := range p.segments {
		if err := p.gpio.SetPin(pin, pat&(1<<i) != 0); err != nil {
			return err
		}
	}
	sel := p.left
	if side == Right {
		sel = p.right
	}
	return p.gpio.SetPin(sel, true)
}

// Off deselects both digits.
func (p *Panel) Off() error {
	if err := p.gpio.SetPin(p.left, false); err != nil {
		return err
	}
	return p.gpio.SetPin(p.right, false)
}
