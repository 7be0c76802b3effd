package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
// A driver is constructed once by the target and handed to every task
// that owns lines on it; there is no package-level driver.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	// Returns error if pin is invalid or already in use
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInput configures a pin as a plain digital input.
	// The board's buttons are active-high with external pull-downs.
	ConfigureInput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// GetPin reads the current pin state
	GetPin(pin GPIOPin) (bool, error)
}

// ConfigureOutputs configures every pin in pins as an output, driven low.
func ConfigureOutputs(d GPIODriver, pins ...GPIOPin) error {
	for _, pin := range pins {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		if err := d.SetPin(pin, false); err != nil {
			return err
		}
	}
	return nil
}

// ConfigureInputs configures every pin in pins as an input.
func ConfigureInputs(d GPIODriver, pins ...GPIOPin) error {
	for _, pin := range pins {
		if err := d.ConfigureInput(pin); err != nil {
			return err
		}
	}
	return nil
}
