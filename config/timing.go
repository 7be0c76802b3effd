package config

import "time"

// Timing is the runtime form of TimingConfig consumed by the tasks.
// Tests build one directly with microsecond delays.
type Timing struct {
	ButtonWindow time.Duration // length of one press-counting window
	ButtonSample time.Duration // sampling period inside the window
	ButtonGap    time.Duration // pause between windows

	StepPhase time.Duration // delay after each coil phase

	RefreshFrames int           // refresh cycles per display frame
	Refresh       time.Duration // one refresh cycle

	OverflowPause time.Duration
	EmergencyHold time.Duration
	IdleHold      time.Duration // follow modes with no change
	Settle        time.Duration // after posting to a queue
	StatusSettle  time.Duration // after posting the full-rotation status
	Poll          time.Duration // idle polling interval

	Telemetry       time.Duration
	ConversionDelay time.Duration // sensor register pointer write to read

	FullRotationSteps int
}

// DefaultTiming returns the board timings.
func DefaultTiming() Timing {
	return Default().Timings()
}

// ButtonSamples returns how many samples fit in one window.
func (t Timing) ButtonSamples() int {
	if t.ButtonSample <= 0 {
		return 1
	}
	n := int(t.ButtonWindow / t.ButtonSample)
	if n < 1 {
		n = 1
	}
	return n
}
