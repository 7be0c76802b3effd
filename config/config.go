// Package config holds the board description: pin map, sensor bus,
// task timings and queue sizes.
package config

import (
	"errors"
	"fmt"
	"time"

	"thermostep/core"
)

var (
	ErrPinConflict   = errors.New("pin assigned twice")
	ErrInvalidQueues = errors.New("invalid queue sizes")
	ErrInvalidTiming = errors.New("invalid timing")
)

// Config is the complete board configuration.
type Config struct {
	Pins    PinConfig     `json:"pins" toml:"pins" yaml:"pins"`
	Sensor  SensorConfig  `json:"sensor" toml:"sensor" yaml:"sensor"`
	Timing  TimingConfig  `json:"timing" toml:"timing" yaml:"timing"`
	Queues  QueueConfig   `json:"queues" toml:"queues" yaml:"queues"`
	Motion  MotionConfig  `json:"motion" toml:"motion" yaml:"motion"`
	Console ConsoleConfig `json:"console" toml:"console" yaml:"console"`
}

// PinConfig maps every line the tasks drive or sample to a GPIO number.
type PinConfig struct {
	Coils       [4]uint32 `json:"coils" toml:"coils" yaml:"coils"`          // IN1..IN4
	Buttons     [3]uint32 `json:"buttons" toml:"buttons" yaml:"buttons"`    // S1..S3, active-high
	Segments    [8]uint32 `json:"segments" toml:"segments" yaml:"segments"` // a b c d e f g dp
	SelectLeft  uint32    `json:"select_left" toml:"select_left" yaml:"select_left"`
	SelectRight uint32    `json:"select_right" toml:"select_right" yaml:"select_right"`
}

// CoilPins returns IN1..IN4.
func (p PinConfig) CoilPins() (out [4]core.GPIOPin) {
	for i, v := range p.Coils {
		out[i] = core.GPIOPin(v)
	}
	return out
}

// ButtonPins returns S1..S3.
func (p PinConfig) ButtonPins() (out [3]core.GPIOPin) {
	for i, v := range p.Buttons {
		out[i] = core.GPIOPin(v)
	}
	return out
}

// SegmentPins returns the segment lines a..g and dp.
func (p PinConfig) SegmentPins() (out [8]core.GPIOPin) {
	for i, v := range p.Segments {
		out[i] = core.GPIOPin(v)
	}
	return out
}

// SelectPins returns the left and right digit selects.
func (p PinConfig) SelectPins() (left, right core.GPIOPin) {
	return core.GPIOPin(p.SelectLeft), core.GPIOPin(p.SelectRight)
}

// SensorConfig describes the HDC1080 on its two-wire bus.
type SensorConfig struct {
	Bus               uint8  `json:"bus" toml:"bus" yaml:"bus"`
	Address           uint8  `json:"address" toml:"address" yaml:"address"`
	FrequencyHz       uint32 `json:"frequency_hz" toml:"frequency_hz" yaml:"frequency_hz"`
	ConversionDelayMs uint32 `json:"conversion_delay_ms" toml:"conversion_delay_ms" yaml:"conversion_delay_ms"`
}

// TimingConfig holds every task delay in milliseconds.
type TimingConfig struct {
	ButtonWindowMs  uint32 `json:"button_window_ms" toml:"button_window_ms" yaml:"button_window_ms"`
	ButtonSampleMs  uint32 `json:"button_sample_ms" toml:"button_sample_ms" yaml:"button_sample_ms"`
	ButtonGapMs     uint32 `json:"button_gap_ms" toml:"button_gap_ms" yaml:"button_gap_ms"`
	StepPhaseMs     uint32 `json:"step_phase_ms" toml:"step_phase_ms" yaml:"step_phase_ms"`
	RefreshFrames   uint32 `json:"refresh_frames" toml:"refresh_frames" yaml:"refresh_frames"`
	RefreshMs       uint32 `json:"refresh_ms" toml:"refresh_ms" yaml:"refresh_ms"`
	OverflowPauseMs uint32 `json:"overflow_pause_ms" toml:"overflow_pause_ms" yaml:"overflow_pause_ms"`
	EmergencyHoldMs uint32 `json:"emergency_hold_ms" toml:"emergency_hold_ms" yaml:"emergency_hold_ms"`
	IdleHoldMs      uint32 `json:"idle_hold_ms" toml:"idle_hold_ms" yaml:"idle_hold_ms"`
	SettleMs        uint32 `json:"settle_ms" toml:"settle_ms" yaml:"settle_ms"`
	StatusSettleMs  uint32 `json:"status_settle_ms" toml:"status_settle_ms" yaml:"status_settle_ms"`
	PollMs          uint32 `json:"poll_ms" toml:"poll_ms" yaml:"poll_ms"`
	TelemetryMs     uint32 `json:"telemetry_ms" toml:"telemetry_ms" yaml:"telemetry_ms"`
}

// QueueConfig sizes the queues on the control bus.
type QueueConfig struct {
	ControlCapacity   int `json:"control_capacity" toml:"control_capacity" yaml:"control_capacity"`
	OverflowThreshold int `json:"overflow_threshold" toml:"overflow_threshold" yaml:"overflow_threshold"`
	RequestCapacity   int `json:"request_capacity" toml:"request_capacity" yaml:"request_capacity"`
}

// MotionConfig holds motor routine parameters.
type MotionConfig struct {
	FullRotationSteps int `json:"full_rotation_steps" toml:"full_rotation_steps" yaml:"full_rotation_steps"`
}

// ConsoleConfig controls console output.
type ConsoleConfig struct {
	Debug       bool `json:"debug" toml:"debug" yaml:"debug"`
	Telemetry   bool `json:"telemetry" toml:"telemetry" yaml:"telemetry"`
	AsyncBuffer int  `json:"async_buffer" toml:"async_buffer" yaml:"async_buffer"`
}

// Default returns the configuration of the reference board.
func Default() *Config {
	return &Config{
		Pins: PinConfig{
			Coils:       [4]uint32{12, 1, 0, 6},
			Buttons:     [3]uint32{19, 9, 8},
			Segments:    [8]uint32{26, 27, 29, 18, 25, 7, 28, 24},
			SelectLeft:  10,
			SelectRight: 11,
		},
		Sensor: SensorConfig{
			Bus:               1,
			Address:           0x40,
			FrequencyHz:       100 * 1000,
			ConversionDelayMs: 100,
		},
		Timing: TimingConfig{
			ButtonWindowMs:  2000,
			ButtonSampleMs:  10,
			ButtonGapMs:     1,
			StepPhaseMs:     10,
			RefreshFrames:   15,
			RefreshMs:       1,
			OverflowPauseMs: 5000,
			EmergencyHoldMs: 5000,
			IdleHoldMs:      2000,
			SettleMs:        10,
			StatusSettleMs:  200,
			PollMs:          1,
			TelemetryMs:     50,
		},
		Queues: QueueConfig{
			ControlCapacity:   12,
			OverflowThreshold: 10,
			RequestCapacity:   2,
		},
		Motion: MotionConfig{
			FullRotationSteps: 500,
		},
		Console: ConsoleConfig{
			Debug:       true,
			Telemetry:   true,
			AsyncBuffer: 16,
		},
	}
}

// applyDefaults replaces zeroed numeric settings with the board defaults
func applyDefaults(config *Config) {
	def := Default()

	if config.Sensor.Address == 0 {
		config.Sensor.Address = def.Sensor.Address
	}
	if config.Sensor.FrequencyHz == 0 {
		config.Sensor.FrequencyHz = def.Sensor.FrequencyHz
	}

	t, d := &config.Timing, def.Timing
	defaultMs(&t.ButtonWindowMs, d.ButtonWindowMs)
	defaultMs(&t.ButtonSampleMs, d.ButtonSampleMs)
	defaultMs(&t.StepPhaseMs, d.StepPhaseMs)
	defaultMs(&t.RefreshFrames, d.RefreshFrames)
	defaultMs(&t.RefreshMs, d.RefreshMs)
	defaultMs(&t.PollMs, d.PollMs)
	defaultMs(&t.TelemetryMs, d.TelemetryMs)

	if config.Queues.OverflowThreshold == 0 {
		config.Queues.OverflowThreshold = def.Queues.OverflowThreshold
	}
	if config.Queues.ControlCapacity == 0 {
		config.Queues.ControlCapacity = config.Queues.OverflowThreshold + 2
	}
	if config.Queues.RequestCapacity == 0 {
		config.Queues.RequestCapacity = def.Queues.RequestCapacity
	}
	if config.Motion.FullRotationSteps == 0 {
		config.Motion.FullRotationSteps = def.Motion.FullRotationSteps
	}
	if config.Console.AsyncBuffer == 0 {
		config.Console.AsyncBuffer = def.Console.AsyncBuffer
	}
}

func defaultMs(v *uint32, def uint32) {
	if *v == 0 {
		*v = def
	}
}

// Validate checks pin assignments and sizes.
func (c *Config) Validate() error {
	seen := make(map[uint32]string)
	claim := func(pin uint32, name string) error {
		if prev, ok := seen[pin]; ok {
			return fmt.Errorf("%w: gpio%d used by %s and %s", ErrPinConflict, pin, prev, name)
		}
		seen[pin] = name
		return nil
	}

	for i, pin := range c.Pins.Coils {
		if err := claim(pin, fmt.Sprintf("coil IN%d", i+1)); err != nil {
			return err
		}
	}
	for i, pin := range c.Pins.Buttons {
		if err := claim(pin, fmt.Sprintf("button S%d", i+1)); err != nil {
			return err
		}
	}
	for i, pin := range c.Pins.Segments {
		if err := claim(pin, "segment "+string("abcdefgP"[i])); err != nil {
			return err
		}
	}
	if err := claim(c.Pins.SelectLeft, "left digit select"); err != nil {
		return err
	}
	if err := claim(c.Pins.SelectRight, "right digit select"); err != nil {
		return err
	}

	q := c.Queues
	if q.OverflowThreshold < 1 || q.RequestCapacity < 1 {
		return fmt.Errorf("%w: threshold=%d requests=%d", ErrInvalidQueues, q.OverflowThreshold, q.RequestCapacity)
	}
	if q.ControlCapacity < q.OverflowThreshold+2 {
		return fmt.Errorf("%w: control capacity %d cannot exceed threshold %d and still hold the overflow sentinel",
			ErrInvalidQueues, q.ControlCapacity, q.OverflowThreshold)
	}
	if c.Timing.ButtonSampleMs > c.Timing.ButtonWindowMs {
		return fmt.Errorf("%w: button sample %dms longer than window %dms",
			ErrInvalidTiming, c.Timing.ButtonSampleMs, c.Timing.ButtonWindowMs)
	}
	if c.Motion.FullRotationSteps < 1 {
		return fmt.Errorf("%w: full rotation needs at least one step", ErrInvalidTiming)
	}
	return nil
}

// Timings converts the millisecond settings into durations.
func (c *Config) Timings() Timing {
	ms := func(v uint32) time.Duration { return time.Duration(v) * time.Millisecond }
	t := c.Timing
	return Timing{
		ButtonWindow:      ms(t.ButtonWindowMs),
		ButtonSample:      ms(t.ButtonSampleMs),
		ButtonGap:         ms(t.ButtonGapMs),
		StepPhase:         ms(t.StepPhaseMs),
		RefreshFrames:     int(t.RefreshFrames),
		Refresh:           ms(t.RefreshMs),
		OverflowPause:     ms(t.OverflowPauseMs),
		EmergencyHold:     ms(t.EmergencyHoldMs),
		IdleHold:          ms(t.IdleHoldMs),
		Settle:            ms(t.SettleMs),
		StatusSettle:      ms(t.StatusSettleMs),
		Poll:              ms(t.PollMs),
		Telemetry:         ms(t.TelemetryMs),
		ConversionDelay:   ms(c.Sensor.ConversionDelayMs),
		FullRotationSteps: c.Motion.FullRotationSteps,
	}
}
