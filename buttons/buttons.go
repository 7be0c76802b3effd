// Package buttons runs the Button Task: three active-high buttons are
// sampled over a fixed window, presses are counted on rising edges, and
// the window's counts are classified into one request code.
package buttons

import (
	"context"
	"errors"

	"thermostep/config"
	"thermostep/control"
	"thermostep/core"
)

// NumButtons is the number of buttons on the board.
const NumButtons = 3

// Input errors. The window is discarded and nothing is posted.
var (
	ErrMultipleButtons = errors.New("only press 1 button at a time")
	ErrTooManyPresses  = errors.New("button presses must be < 3 in 2 seconds")
)

// Request is the outcome of one valid window.
type Request struct {
	Button  int // 1-based
	Presses int // 1..3

	// Exactly one of these is set: buttons 1 and 2 select motor modes,
	// button 3 selects what the displays show.
	Motor   control.MotorRequest
	Display control.DisplayRequest
}

// Code returns the numeric request code (11..33).
func (r Request) Code() int {
	if r.Display != control.DisplayNone {
		return int(r.Display)
	}
	return int(r.Motor)
}

var motorModes = [2][3]control.MotorRequest{
	{control.MoveOnTemperature, control.MoveOnHumidity, control.StopEmergency},
	{control.RotateCW, control.RotateCCW, control.FullRotation},
}

var displayModes = [3]control.DisplayRequest{
	control.DisplayTemperature, control.DisplayHumidity, control.DisplayMotorStatus,
}

// Classify maps one window's press counts to a request. It returns
// ok=false with a nil error when nothing was pressed.
func Classify(counts [NumButtons]int) (req Request, ok bool, err error) {
	pressed := -1
	for i, n := range counts {
		if n <= 0 {
			continue
		}
		if pressed >= 0 {
			return Request{}, false, ErrMultipleButtons
		}
		pressed = i
	}
	if pressed < 0 {
		return Request{}, false, nil
	}

	n := counts[pressed]
	if n > 3 {
		return Request{}, false, ErrTooManyPresses
	}

	req = Request{Button: pressed + 1, Presses: n}
	if pressed < 2 {
		req.Motor = motorModes[pressed][n-1]
	} else {
		req.Display = displayModes[n-1]
	}
	return req, true, nil
}

// Counter counts presses on rising edges. A press is counted when a
// button reads high after reading low; holding it counts once.
type Counter struct {
	held   [NumButtons]bool
	Counts [NumButtons]int
}

// Sample feeds one reading of every button.
func (c *Counter) Sample(levels [NumButtons]bool) {
	for i, on := range levels {
		if on && !c.held[i] {
			c.Counts[i]++
		}
		c.held[i] = on
	}
}

// Stats counts windows by outcome.
type Stats struct {
	Windows    uint32
	Posted     uint32
	Rejected   uint32
	Dropped    uint32 // request queue full
	ReadErrors uint32
}

// Task is the Button Task.
type Task struct {
	bus    *control.Bus
	gpio   core.GPIODriver
	pins   [NumButtons]core.GPIOPin
	timing config.Timing
	log    *core.Log

	Stats Stats
}

// New configures the button pins as inputs and creates the task.
func New(bus *control.Bus, gpio core.GPIODriver, pins [NumButtons]core.GPIOPin, timing config.Timing, log *core.Log) (*Task, error) {
	if err := core.ConfigureInputs(gpio, pins[:]...); err != nil {
		return nil, err
	}
	return &Task{bus: bus, gpio: gpio, pins: pins, timing: timing, log: log}, nil
}

// Run samples windows back to back until ctx is done.
func (t *Task) Run(ctx context.Context) error {
	for {
		if _, err := t.Window(ctx); err != nil {
			return err
		}
		if err := core.Delay(ctx, t.timing.ButtonGap); err != nil {
			return err
		}
	}
}

// Window samples one window, classifies it and posts the resulting
// request. It returns the counts it saw. Nothing carries over from one
// window to the next.
func (t *Task) Window(ctx context.Context) ([NumButtons]int, error) {
	var c Counter
	for i := t.timing.ButtonSamples(); i > 0; i-- {
		c.Sample(t.read())
		if err := core.Delay(ctx, t.timing.ButtonSample); err != nil {
			return c.Counts, err
		}
	}
	t.Stats.Windows++

	req, ok, err := Classify(c.Counts)
	if err != nil {
		t.Stats.Rejected++
		t.log.Async("[BUTTON] Error: " + err.Error())
		return c.Counts, nil
	}
	if !ok {
		return c.Counts, nil
	}

	t.log.Async("[BUTTON] button" + core.Itoa(req.Button) + " pressed " + core.Itoa(req.Presses) + " times")
	t.post(req)
	return c.Counts, nil
}

func (t *Task) read() [NumButtons]bool {
	var levels [NumButtons]bool
	for i, pin := range t.pins {
		on, err := t.gpio.GetPin(pin)
		if err != nil {
			t.Stats.ReadErrors++
			continue
		}
		levels[i] = on
	}
	return levels
}

func (t *Task) post(req Request) {
	var sent bool
	if req.Display != control.DisplayNone {
		sent = t.bus.DisplayRequests.TrySend(req.Display)
	} else {
		sent = t.bus.MotorRequests.TrySend(req.Motor)
	}

	if !sent {
		t.Stats.Dropped++
		t.log.Record(core.EvtDrop, core.TaskButton, int32(req.Code()))
		t.log.Async("[BUTTON] request " + core.Itoa(req.Code()) + " dropped, queue full")
		return
	}
	t.Stats.Posted++
	t.log.Record(core.EvtSend, core.TaskButton, int32(req.Code()))
}
