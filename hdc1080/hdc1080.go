// Package hdc1080 reads the TI HDC1080 temperature/humidity sensor.
//
// Every register access is two bus transactions: write the register
// pointer, wait for the conversion, read two bytes. There is no retry;
// a failed transaction is returned to the caller.
package hdc1080

import (
	"errors"
	"math"
	"time"

	"golang.org/x/exp/constraints"
	"tinygo.org/x/drivers"

	"thermostep/core"
)

// ErrShortRead is returned when the bus delivers fewer than two bytes.
var ErrShortRead = errors.New("hdc1080: short read")

// RegisterError is a failed bus transaction on one register.
type RegisterError struct {
	Op  string // "select" or "read"
	Reg uint8
	Err error
}

func (e *RegisterError) Error() string {
	return "hdc1080: " + e.Op + " register 0x" + core.Hex16(uint16(e.Reg)) + ": " + e.Err.Error()
}

func (e *RegisterError) Unwrap() error {
	return e.Err
}

// Device wraps an I2C connection to an HDC1080 device.
type Device struct {
	bus             drivers.I2C
	Address         uint16
	ConversionDelay time.Duration

	// sleep is replaced in tests.
	sleep func(time.Duration)
}

// Identity is the block of registers read once at startup.
type Identity struct {
	Configuration  uint16
	ManufacturerID uint16
	DeviceID       uint16
	Serial         [3]uint16
}

// New creates a new HDC1080 connection. The I2C bus must already be
// configured.
func New(bus drivers.I2C) *Device {
	return &Device{
		bus:             bus,
		Address:         Address,
		ConversionDelay: 100 * time.Millisecond,
		sleep:           time.Sleep,
	}
}

// ReadRegister returns the 16-bit content of reg.
func (d *Device) ReadRegister(reg uint8) (uint16, error) {
	if err := d.bus.Tx(d.Address, []byte{reg}, nil); err != nil {
		return 0, &RegisterError{Op: "select", Reg: reg, Err: err}
	}
	if d.ConversionDelay > 0 {
		d.sleep(d.ConversionDelay)
	}

	var buf [2]byte
	if err := d.bus.Tx(d.Address, nil, buf[:]); err != nil {
		return 0, &RegisterError{Op: "read", Reg: reg, Err: err}
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// ReadIdentity reads the configuration, id and serial registers.
func (d *Device) ReadIdentity() (Identity, error) {
	var (
		id  Identity
		err error
	)
	regs := []struct {
		reg uint8
		dst *uint16
	}{
		{REG_CONFIGURATION, &id.Configuration},
		{REG_MANUFACTURER_ID, &id.ManufacturerID},
		{REG_DEVICE_ID, &id.DeviceID},
		{REG_SERIAL_ID1, &id.Serial[0]},
		{REG_SERIAL_ID2, &id.Serial[1]},
		{REG_SERIAL_ID3, &id.Serial[2]},
	}
	for _, r := range regs {
		if *r.dst, err = d.ReadRegister(r.reg); err != nil {
			return id, err
		}
	}
	return id, nil
}

// Connected reports whether the manufacturer and device ids match.
func (d *Device) Connected() bool {
	mfg, err := d.ReadRegister(REG_MANUFACTURER_ID)
	if err != nil {
		return false
	}
	dev, err := d.ReadRegister(REG_DEVICE_ID)
	if err != nil {
		return false
	}
	return mfg == MANUFACTURER_ID && dev == DEVICE_ID
}

// Temperature returns the temperature in whole degrees Celsius,
// rounded to nearest.
func (d *Device) Temperature() (int, error) {
	raw, err := d.ReadRegister(REG_TEMPERATURE)
	if err != nil {
		return 0, err
	}
	return int(math.Round(Convert(raw, temperatureSpan, temperatureOffset))), nil
}

// Humidity returns the relative humidity in whole percent, rounded to
// nearest.
func (d *Device) Humidity() (int, error) {
	raw, err := d.ReadRegister(REG_HUMIDITY)
	if err != nil {
		return 0, err
	}
	return int(math.Round(Convert(raw, humiditySpan, humidityOffset))), nil
}

// Convert maps a raw 16-bit reading onto span starting at offset.
func Convert[T constraints.Float](raw uint16, span, offset T) T {
	return T(raw)/65536*span + offset
}

// RawTemperature is the inverse of the temperature conversion, used by
// simulated sensors.
func RawTemperature(celsius float64) uint16 {
	return toRaw(celsius, temperatureSpan, temperatureOffset)
}

// RawHumidity is the inverse of the humidity conversion.
func RawHumidity(percent float64) uint16 {
	return toRaw(percent, humiditySpan, humidityOffset)
}

func toRaw(v, span, offset float64) uint16 {
	r := math.Round((v - offset) / span * 65536)
	if r < 0 {
		return 0
	}
	if r > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(r)
}

// CelsiusToFahrenheit converts whole degrees, truncating toward zero
// like the board's integer arithmetic.
func CelsiusToFahrenheit(c int) int {
	return int(float64(c)*1.8 + 32)
}
