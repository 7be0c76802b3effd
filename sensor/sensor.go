// Package sensor runs the Sensor Task: it polls the HDC1080, answers
// display requests by relaying values onto the Control Queue, guards
// the queue against overflow and parks itself on emergency stop.
package sensor

import (
	"context"

	"thermostep/config"
	"thermostep/control"
	"thermostep/core"
	"thermostep/hdc1080"
)

// Reader is the sensor collaborator. *hdc1080.Device implements it.
type Reader interface {
	Temperature() (int, error)
	Humidity() (int, error)
	ReadIdentity() (hdc1080.Identity, error)
}

// Stats counts what the task has done since start.
type Stats struct {
	Cycles    uint32
	BusErrors uint32
	Relayed   uint32
	Dropped   uint32
	Overflows uint32
	Parks     uint32
}

// Task is the Sensor Task.
type Task struct {
	bus    *control.Bus
	dev    Reader
	timing config.Timing
	log    *core.Log

	mode       control.DisplayRequest // sticky until the next request
	lastStatus control.Status         // sticky until the next status
	last       control.Sample

	Stats Stats
}

// New creates the task. log may be nil.
func New(bus *control.Bus, dev Reader, timing config.Timing, log *core.Log) *Task {
	return &Task{bus: bus, dev: dev, timing: timing, log: log}
}

// Mode returns the display request currently being served.
func (t *Task) Mode() control.DisplayRequest {
	return t.mode
}

// Last returns the most recent successful sample.
func (t *Task) Last() control.Sample {
	return t.last
}

// PrintIdentity reads the identity registers once and logs them.
func (t *Task) PrintIdentity() error {
	id, err := t.dev.ReadIdentity()
	if err != nil {
		t.log.Println("[SENSOR] identity read failed: " + err.Error())
		return err
	}
	t.log.Println("[SENSOR] Configuration Register = 0x" + core.Hex16(id.Configuration))
	t.log.Println("[SENSOR] Manufacturer ID = 0x" + core.Hex16(id.ManufacturerID))
	t.log.Println("[SENSOR] Serial Number = " + core.Hex16(id.Serial[0]) +
		"-" + core.Hex16(id.Serial[1]) + "-" + core.Hex16(id.Serial[2]))
	return nil
}

// Run prints the identity block and cycles until ctx is done.
func (t *Task) Run(ctx context.Context) error {
	_ = t.PrintIdentity()
	for {
		if err := t.Cycle(ctx); err != nil {
			return err
		}
	}
}

// Cycle runs one sense-and-relay pass under the ownership semaphore.
// If the pass finds the emergency-stop sentinel it returns only after
// the motor task releases the halt latch.
func (t *Task) Cycle(ctx context.Context) error {
	if err := t.bus.SensorHalt.Wait(ctx); err != nil {
		return err
	}
	if err := t.bus.Ownership.Take(ctx, "sensor"); err != nil {
		return err
	}
	t.log.Record(core.EvtTake, core.TaskSensor, 0)

	park, err := t.sense(ctx)

	t.bus.Ownership.Give()
	t.log.Record(core.EvtGive, core.TaskSensor, 0)

	if err != nil || !park {
		return err
	}

	t.Stats.Parks++
	t.log.Record(core.EvtPark, core.TaskSensor, control.CodeEmergencyStop)
	t.log.Async("[SENSOR] emergency stop, sensing suspended")
	if err := t.bus.SensorHalt.Wait(ctx); err != nil {
		return err
	}
	t.log.Record(core.EvtResume, core.TaskSensor, 0)
	t.log.Async("[SENSOR] resumed")
	return nil
}

// sense is the body of a cycle; the caller holds ownership.
func (t *Task) sense(ctx context.Context) (bool, error) {
	t.Stats.Cycles++

	sample, readErr := t.read()
	if readErr != nil {
		t.Stats.BusErrors++
		t.log.Record(core.EvtBusError, core.TaskSensor, int32(t.Stats.BusErrors))
		t.log.Async("[SENSOR] read failed: " + readErr.Error())
	} else {
		t.last = sample
	}

	if req, ok := t.bus.DisplayRequests.TryReceive(); ok {
		t.mode = req
		t.log.Async("[SENSOR] display request " + core.Itoa(int(req)) + " (" + req.String() + ")")
	}

	if t.bus.Control.Len() > t.bus.OverflowThreshold {
		if err := t.overflow(ctx); err != nil {
			return false, err
		}
	}

	switch t.mode {
	case control.DisplayTemperature, control.DisplayHumidity:
		if readErr != nil {
			return t.checkHead(), nil
		}
		q := control.Temperature
		if t.mode == control.DisplayHumidity {
			q = control.Humidity
		}
		t.send(control.Reading(q, sample))
	case control.DisplayMotorStatus:
		if st, ok := t.bus.MotorStatus.TryReceive(); ok {
			t.lastStatus = st
		}
		if t.lastStatus == control.StatusNone {
			return t.checkHead(), nil
		}
		t.send(control.MotorStatus(t.lastStatus))
	default:
		return t.checkHead(), nil
	}

	if err := core.Delay(ctx, t.timing.Settle); err != nil {
		return false, err
	}
	return t.checkHead(), nil
}

func (t *Task) read() (control.Sample, error) {
	c, err := t.dev.Temperature()
	if err != nil {
		return control.Sample{}, err
	}
	h, err := t.dev.Humidity()
	if err != nil {
		return control.Sample{}, err
	}
	return control.Sample{TempC: c, TempF: hdc1080.CelsiusToFahrenheit(c), Humidity: h}, nil
}

func (t *Task) send(m control.Message) {
	if t.bus.Control.TrySend(m) {
		t.Stats.Relayed++
		t.log.Record(core.EvtSend, core.TaskSensor, int32(m.Code()))
		return
	}
	t.Stats.Dropped++
	t.log.Record(core.EvtDrop, core.TaskSensor, int32(m.Code()))
}

// overflow shows the overflow sentinel for the pause window and clears
// the backlog on both sides of it.
func (t *Task) overflow(ctx context.Context) error {
	depth := t.bus.Control.Len()
	t.Stats.Overflows++
	t.log.Record(core.EvtOverflow, core.TaskSensor, int32(depth))
	t.log.Async("[SENSOR] control queue overflow (" + core.Itoa(depth) + " unread)")

	t.bus.Control.Reset()
	t.bus.Control.TrySend(control.Overflow())
	err := core.Delay(ctx, t.timing.OverflowPause)
	t.bus.Control.Reset()
	return err
}

// checkHead reports whether the head of the Control Queue is the
// emergency-stop sentinel, engaging the halt latch if so. Otherwise the
// head is consumed when a newer value stands behind it, so the displays
// always show the latest.
func (t *Task) checkHead() bool {
	head, ok := t.bus.Control.TryPeek()
	if !ok {
		return false
	}
	if control.IsEmergencyStop(head) {
		// Engaged while ownership is still held, so the motor's
		// release cannot slip in before it.
		t.bus.SensorHalt.Engage()
		t.mode = control.DisplayNone
		return true
	}
	if t.bus.Control.Len() > 1 {
		t.bus.Control.TryReceive()
	}
	return false
}
