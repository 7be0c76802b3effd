package display

import (
	"context"

	"thermostep/config"
	"thermostep/control"
	"thermostep/core"
)

// Task renders one digit: Display-Left or Display-Right.
type Task struct {
	side   Side
	bus    *control.Bus
	panel  *Panel
	timing config.Timing
	log    *core.Log

	current Pattern // kept when the Control Queue is empty
	Frames  uint32
}

// NewTask creates the task for side. Both tasks share panel.
func NewTask(side Side, bus *control.Bus, panel *Panel, timing config.Timing, log *core.Log) *Task {
	return &Task{side: side, bus: bus, panel: panel, timing: timing, log: log}
}

// Current returns the pattern the task is rendering.
func (t *Task) Current() Pattern {
	return t.current
}

func (t *Task) taskID() core.TaskID {
	if t.side == Right {
		return core.TaskDisplayRight
	}
	return core.TaskDisplayLeft
}

// Run renders frames until ctx is done.
func (t *Task) Run(ctx context.Context) error {
	for {
		if err := t.Frame(ctx); err != nil {
			return err
		}
	}
}

// Frame peeks the Control Queue once and refreshes the digit for
// RefreshFrames cycles. Each cycle holds the display semaphore while
// the digit is lit.
func (t *Task) Frame(ctx context.Context) error {
	if m, ok := t.bus.Control.TryPeek(); ok {
		if p, ok := Decode(m, t.side); ok {
			t.current = p
		}
	}

	frames := t.timing.RefreshFrames
	if frames < 1 {
		frames = 1
	}
	who := t.taskID().String()
	for i := 0; i < frames; i++ {
		if err := t.bus.Display.Take(ctx, who); err != nil {
			return err
		}
		err := t.panel.Show(t.side, t.current)
		if err == nil {
			err = core.Delay(ctx, t.timing.Refresh)
		}
		t.bus.Display.Give()
		if err != nil {
			return err
		}
	}
	t.Frames++
	return nil
}
