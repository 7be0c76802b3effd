package hdc1080

// The default I2C address for this device.
const Address = 0x40

// Registers. Each is 16 bits wide, big-endian on the wire.
const (
	REG_TEMPERATURE     = 0x00
	REG_HUMIDITY        = 0x01
	REG_CONFIGURATION   = 0x02
	REG_SERIAL_ID1      = 0xFB
	REG_SERIAL_ID2      = 0xFC
	REG_SERIAL_ID3      = 0xFD
	REG_MANUFACTURER_ID = 0xFE
	REG_DEVICE_ID       = 0xFF
)

// Expected identity register contents.
const (
	MANUFACTURER_ID = 0x5449 // "TI"
	DEVICE_ID       = 0x1050
)

// Conversion constants: value/65536 * span + offset.
const (
	temperatureSpan   = 165.0
	temperatureOffset = -40.0
	humiditySpan      = 100.0
	humidityOffset    = 0.0
)
