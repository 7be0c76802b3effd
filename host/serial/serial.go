package serial

import (
	"io"
	"time"
)

// Port is the board's USB console as seen from the host. Tests use an
// in-memory stand-in.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC ignores this)
	Baud int

	// ReadTimeout bounds each Read; 0 blocks. A timed-out Read returns
	// io.EOF with no data.
	ReadTimeout time.Duration
}

// DefaultConfig returns the console settings of the board.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}
