// Package stepper drives a four-coil unipolar stepper (28BYJ-48 on a
// ULN2003 board) through a full-step phase sequence on plain GPIO lines.
package stepper

import (
	"context"
	"errors"
	"time"

	"thermostep/core"
)

// Direction of rotation.
type Direction int8

const (
	Clockwise        Direction = 1
	CounterClockwise Direction = -1
)

func (d Direction) String() string {
	if d == CounterClockwise {
		return "ccw"
	}
	return "cw"
}

// Phase is the on/off state of the four coils, bit 0 = IN1.
type Phase uint8

// Full-step phases in clockwise order. Counter-clockwise walks the same
// table backwards.
var phases = [4]Phase{
	0b1001, // IN1 IN4
	0b0011, // IN1 IN2
	0b0110, // IN2 IN3
	0b1100, // IN3 IN4
}

// Sequence returns the four phases one step drives in direction dir.
func Sequence(dir Direction) [4]Phase {
	if dir == CounterClockwise {
		return [4]Phase{phases[3], phases[2], phases[1], phases[0]}
	}
	return phases
}

// ErrNoDriver is returned by New when gpio is nil.
var ErrNoDriver = errors.New("stepper: no GPIO driver")

// Motor is one stepper on four coil lines.
type Motor struct {
	gpio      core.GPIODriver
	coils     [4]core.GPIOPin
	PhaseTime time.Duration // delay after each phase

	// State
	Position int64 // signed step count, CW positive
	Steps    uint64
	Phase    Phase // last phase driven, 0 when released
}

// New configures the coil lines as outputs, driven low.
func New(gpio core.GPIODriver, coils [4]core.GPIOPin, phaseTime time.Duration) (*Motor, error) {
	if gpio == nil {
		return nil, ErrNoDriver
	}
	if err := core.ConfigureOutputs(gpio, coils[:]...); err != nil {
		return nil, err
	}
	return &Motor{gpio: gpio, coils: coils, PhaseTime: phaseTime}, nil
}

// Step advances the motor by one full step: four phase transitions,
// each followed by PhaseTime. A cancelled ctx stops between phases and
// the step is not counted.
func (m *Motor) Step(ctx context.Context, dir Direction) error {
	for _, p := range Sequence(dir) {
		if err := m.drive(p); err != nil {
			return err
		}
		if err := core.Delay(ctx, m.PhaseTime); err != nil {
			return err
		}
	}
	m.Steps++
	m.Position += int64(dir)
	return nil
}

// StepN runs n steps in direction dir.
func (m *Motor) StepN(ctx context.Context, dir Direction, n int) error {
	for i := 0; i < n; i++ {
		if err := m.Step(ctx, dir); err != nil {
			return err
		}
	}
	return nil
}

// Release de-energizes every coil.
func (m *Motor) Release() error {
	return m.drive(0)
}

func (m *Motor) drive(p Phase) error {
	for i, pin := range m.coils {
		if err := m.gpio.SetPin(pin, p&(1<<i) != 0); err != nil {
			return err
		}
	}
	m.Phase = p
	return nil
}
