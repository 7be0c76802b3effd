package sim

import (
	"errors"
	"sync"

	"thermostep/hdc1080"
)

// ErrNack is returned for transactions addressed to another device.
var ErrNack = errors.New("sim: i2c nack")

// HDC1080 is an in-memory HDC1080 behind an I2C bus. It implements
// drivers.I2C so hdc1080.New can use it directly.
type HDC1080 struct {
	mu          sync.Mutex
	address     uint16
	pointer     uint8
	temperature float64
	humidity    float64
	regs        map[uint8]uint16
	fail        error
	failCount   int
	txCount     int
}

// NewHDC1080 returns a device at the default address reading 20°C and
// 40 %RH, with the factory identity registers.
func NewHDC1080() *HDC1080 {
	return &HDC1080{
		address:     hdc1080.Address,
		temperature: 20,
		humidity:    40,
		regs: map[uint8]uint16{
			hdc1080.REG_CONFIGURATION:   0x1000,
			hdc1080.REG_MANUFACTURER_ID: hdc1080.MANUFACTURER_ID,
			hdc1080.REG_DEVICE_ID:       hdc1080.DEVICE_ID,
			hdc1080.REG_SERIAL_ID1:      0x0231,
			hdc1080.REG_SERIAL_ID2:      0x8E4F,
			hdc1080.REG_SERIAL_ID3:      0x9800,
		},
	}
}

// SetTemperature sets the temperature in °C returned by the next read.
func (s *HDC1080) SetTemperature(c float64) {
	s.mu.Lock()
	s.temperature = c
	s.mu.Unlock()
}

// SetHumidity sets the relative humidity returned by the next read.
func (s *HDC1080) SetHumidity(p float64) {
	s.mu.Lock()
	s.humidity = p
	s.mu.Unlock()
}

// Conditions returns the current temperature and humidity.
func (s *HDC1080) Conditions() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temperature, s.humidity
}

// FailNext makes the next n transactions return err.
func (s *HDC1080) FailNext(n int, err error) {
	s.mu.Lock()
	s.fail = err
	s.failCount = n
	s.mu.Unlock()
}

// Transactions returns how many transactions were addressed to the device.
func (s *HDC1080) Transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

// Tx performs a write of w followed by a read into r.
func (s *HDC1080) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if addr != s.address {
		return ErrNack
	}
	s.txCount++
	if s.failCount > 0 {
		s.failCount--
		return s.fail
	}
	if len(w) > 0 {
		s.pointer = w[0]
	}
	if len(r) > 0 {
		v := s.register(s.pointer)
		r[0] = byte(v >> 8)
		if len(r) > 1 {
			r[1] = byte(v)
		}
	}
	return nil
}

// ReadRegister and WriteRegister complete the legacy register interface
// some drivers.I2C consumers still use.
func (s *HDC1080) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return s.Tx(uint16(addr), []byte{reg}, buf)
}

func (s *HDC1080) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	if len(buf) >= 2 {
		s.mu.Lock()
		s.regs[reg] = uint16(buf[0])<<8 | uint16(buf[1])
		s.mu.Unlock()
	}
	return s.Tx(uint16(addr), []byte{reg}, nil)
}

func (s *HDC1080) register(reg uint8) uint16 {
	switch reg {
	case hdc1080.REG_TEMPERATURE:
		return hdc1080.RawTemperature(s.temperature)
	case hdc1080.REG_HUMIDITY:
		return hdc1080.RawHumidity(s.humidity)
	}
	return s.regs[reg]
}
