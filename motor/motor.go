// Package motor runs the Motor Task: a small state machine over the
// motor request codes that drives the stepper and reports status codes
// for the displays.
package motor

import (
	"context"
	"time"

	"thermostep/config"
	"thermostep/control"
	"thermostep/core"
	"thermostep/stepper"
)

// Driver is the motion primitive. *stepper.Motor implements it.
type Driver interface {
	Step(ctx context.Context, dir stepper.Direction) error
	Release() error
}

// Stats counts motor activity since start.
type Stats struct {
	Cycles        uint32
	StepsCW       uint32
	StepsCCW      uint32
	FullRotations uint32
	Emergencies   uint32
}

// Task is the Motor Task.
type Task struct {
	bus    *control.Bus
	motor  Driver
	timing config.Timing
	log    *core.Log

	mode     control.MotorRequest // 0 when idle; sticky otherwise
	entering bool                 // first cycle after a new request
	prevTemp int                  // last followed temperature, °C
	prevHum  int                  // last followed humidity, %RH

	Stats Stats
}

// New creates the task. log may be nil.
func New(bus *control.Bus, motor Driver, timing config.Timing, log *core.Log) *Task {
	return &Task{bus: bus, motor: motor, timing: timing, log: log}
}

// Mode returns the active request, or 0 when idle.
func (t *Task) Mode() control.MotorRequest {
	return t.mode
}

// Previous returns the remembered temperature and humidity the follow
// modes compare against.
func (t *Task) Previous() (tempC, humidity int) {
	return t.prevTemp, t.prevHum
}

// Run cycles until ctx is done. Coils are released on the way out.
func (t *Task) Run(ctx context.Context) error {
	for {
		if err := t.Cycle(ctx); err != nil {
			return err
		}
	}
}

// Cycle takes ownership, picks up a pending request, runs one dispatch
// of the active mode and releases ownership. The hold the mode asks for
// is spent after ownership is given back.
func (t *Task) Cycle(ctx context.Context) error {
	if err := t.bus.Ownership.Take(ctx, "motor"); err != nil {
		return err
	}
	t.log.Record(core.EvtTake, core.TaskMotor, 0)

	if req, ok := t.bus.MotorRequests.TryReceive(); ok {
		t.mode = req
		t.entering = true
		t.log.Async("[MOTOR] request " + core.Itoa(int(req)) + " (" + req.String() + ")")
	}
	t.Stats.Cycles++
	hold, err := t.dispatch(ctx)
	t.entering = false

	t.bus.Ownership.Give()
	t.log.Record(core.EvtGive, core.TaskMotor, 0)

	if err != nil {
		t.motor.Release()
		return err
	}
	if err := core.Delay(ctx, hold); err != nil {
		t.motor.Release()
		return err
	}
	return nil
}

// dispatch runs the active mode once and returns how long to wait
// before the next cycle.
func (t *Task) dispatch(ctx context.Context) (time.Duration, error) {
	switch t.mode {
	case control.MoveOnTemperature, control.MoveOnHumidity:
		if t.entering {
			st := control.StatusMoveOnTemp
			if t.mode == control.MoveOnHumidity {
				st = control.StatusMoveOnHumidity
			}
			if err := t.announce(ctx, st); err != nil {
				return 0, err
			}
		}
		return t.follow(ctx, t.mode == control.MoveOnHumidity)

	case control.RotateCW, control.RotateCCW:
		dir := stepper.Clockwise
		st := control.StatusRotateCW
		if t.mode == control.RotateCCW {
			dir, st = stepper.CounterClockwise, control.StatusRotateCCW
		}
		if t.entering {
			if err := t.announce(ctx, st); err != nil {
				return 0, err
			}
		}
		return t.timing.Poll, t.step(ctx, dir, 1)

	case control.FullRotation:
		t.mode = 0
		return t.timing.Poll, t.fullRotation(ctx)

	case control.StopEmergency:
		t.mode = 0
		return t.timing.Poll, t.emergencyStop(ctx)
	}
	return t.timing.Poll, nil
}

// announce posts a status for the sensor task to relay, then settles.
// A full status queue loses its oldest entry.
func (t *Task) announce(ctx context.Context, st control.Status) error {
	if t.bus.MotorStatus.Push(st) {
		t.log.Record(core.EvtDrop, core.TaskMotor, int32(st))
	}
	t.log.Record(core.EvtSend, core.TaskMotor, int32(st))
	return core.Delay(ctx, t.timing.Settle)
}

// follow steps once per unit of change between the reading at the head
// of the Control Queue and the remembered one. Heads that are not
// readings leave the motor where it is.
func (t *Task) follow(ctx context.Context, humidity bool) (time.Duration, error) {
	head, ok := t.bus.Control.TryPeek()
	if !ok || head.Kind != control.KindReading {
		return t.timing.Poll, nil
	}

	cur, prev := head.Sample.TempC, &t.prevTemp
	if humidity {
		cur, prev = head.Sample.Humidity, &t.prevHum
	}

	delta := cur - *prev
	if delta == 0 {
		t.motor.Release()
		return t.timing.IdleHold, nil
	}
	*prev = cur

	dir := stepper.Clockwise
	if delta < 0 {
		dir = stepper.CounterClockwise
	}
	return t.timing.Poll, t.step(ctx, dir, core.Abs(delta))
}

func (t *Task) step(ctx context.Context, dir stepper.Direction, n int) error {
	for i := 0; i < n; i++ {
		if err := t.motor.Step(ctx, dir); err != nil {
			return err
		}
		if dir == stepper.Clockwise {
			t.Stats.StepsCW++
		} else {
			t.Stats.StepsCCW++
		}
	}
	return nil
}

// fullRotation is the unattended self-test: one revolution clockwise,
// one back, coils released. It runs to completion once started.
func (t *Task) fullRotation(ctx context.Context) error {
	t.log.Async("[MOTOR] full rotation test, " + core.Itoa(t.timing.FullRotationSteps) + " steps each way")

	t.bus.MotorStatus.TryReceive()
	if err := core.Delay(ctx, t.timing.Settle); err != nil {
		return err
	}
	t.bus.MotorStatus.Push(control.StatusFullRotation)
	t.log.Record(core.EvtSend, core.TaskMotor, int32(control.StatusFullRotation))
	if err := core.Delay(ctx, t.timing.StatusSettle); err != nil {
		return err
	}

	if err := t.step(ctx, stepper.Clockwise, t.timing.FullRotationSteps); err != nil {
		return err
	}
	if err := t.step(ctx, stepper.CounterClockwise, t.timing.FullRotationSteps); err != nil {
		return err
	}
	t.Stats.FullRotations++
	return t.motor.Release()
}

// emergencyStop de-energizes the coils, parks the sensor task and puts
// the emergency-stop sentinel at the head of the Control Queue for the
// hold period. Ownership stays with the motor task throughout. Then it
// lets the sensor task go, removes every sentinel and posts the
// resume status.
func (t *Task) emergencyStop(ctx context.Context) error {
	t.Stats.Emergencies++
	t.motor.Release()
	t.bus.SensorHalt.Engage()

	if !t.bus.Control.SendToFront(control.EmergencyStop()) {
		// full: the oldest value gives way
		t.bus.Control.TryReceive()
		t.bus.Control.SendToFront(control.EmergencyStop())
	}
	t.log.Record(core.EvtEmergency, core.TaskMotor, control.CodeEmergencyStop)
	t.log.Async("[MOTOR] emergency stop")

	err := core.Delay(ctx, t.timing.EmergencyHold)

	t.bus.SensorHalt.Release()
	t.log.Record(core.EvtResume, core.TaskMotor, 0)
	n := t.bus.Control.RemoveFunc(control.IsEmergencyStop)
	t.log.Async("[MOTOR] resuming, cleared " + core.Itoa(n) + " stop sentinel(s)")

	t.bus.MotorStatus.Push(control.StatusFullRotation)
	t.log.Record(core.EvtSend, core.TaskMotor, int32(control.StatusFullRotation))
	if err != nil {
		return err
	}
	return core.Delay(ctx, t.timing.StatusSettle)
}
