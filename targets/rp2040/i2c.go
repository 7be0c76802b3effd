//go:build rp2040

package main

import (
	"errors"
	"machine"
	"sync"

	"thermostep/config"
)

// RPI2CBus serializes transactions on one machine.I2C. It satisfies
// drivers.I2C.
type RPI2CBus struct {
	mu  sync.Mutex
	i2c *machine.I2C
}

// ConfigureI2C initializes the sensor bus at the configured frequency
// on TinyGo's default pins for it.
func ConfigureI2C(cfg config.SensorConfig) (*RPI2CBus, error) {
	var i2c *machine.I2C
	switch cfg.Bus {
	case 0:
		i2c = machine.I2C0
	case 1:
		i2c = machine.I2C1
	default:
		return nil, errors.New("unsupported I2C bus ID")
	}

	if err := i2c.Configure(machine.I2CConfig{Frequency: cfg.FrequencyHz}); err != nil {
		return nil, err
	}
	return &RPI2CBus{i2c: i2c}, nil
}

// Tx writes w then reads into r, with a restart in between when both
// are given.
func (b *RPI2CBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.i2c.Tx(addr, w, r)
}
