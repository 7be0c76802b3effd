package buttons

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"thermostep/config"
	"thermostep/control"
	"thermostep/core"
	"thermostep/sim"
)

var testPins = [NumButtons]core.GPIOPin{19, 9, 8}

func TestClassify(t *testing.T) {
	tests := []struct {
		counts  [NumButtons]int
		ok      bool
		err     error
		code    int
		button  int
		motor   control.MotorRequest
		display control.DisplayRequest
	}{
		{counts: [3]int{0, 0, 0}},
		{counts: [3]int{1, 0, 0}, ok: true, code: 11, button: 1, motor: control.MoveOnTemperature},
		{counts: [3]int{2, 0, 0}, ok: true, code: 12, button: 1, motor: control.MoveOnHumidity},
		{counts: [3]int{3, 0, 0}, ok: true, code: 13, button: 1, motor: control.StopEmergency},
		{counts: [3]int{0, 1, 0}, ok: true, code: 21, button: 2, motor: control.RotateCW},
		{counts: [3]int{0, 2, 0}, ok: true, code: 22, button: 2, motor: control.RotateCCW},
		{counts: [3]int{0, 3, 0}, ok: true, code: 23, button: 2, motor: control.FullRotation},
		{counts: [3]int{0, 0, 1}, ok: true, code: 31, button: 3, display: control.DisplayTemperature},
		{counts: [3]int{0, 0, 2}, ok: true, code: 32, button: 3, display: control.DisplayHumidity},
		{counts: [3]int{0, 0, 3}, ok: true, code: 33, button: 3, display: control.DisplayMotorStatus},
		{counts: [3]int{4, 0, 0}, err: ErrTooManyPresses},
		{counts: [3]int{0, 7, 0}, err: ErrTooManyPresses},
		{counts: [3]int{1, 1, 0}, err: ErrMultipleButtons},
		{counts: [3]int{0, 2, 1}, err: ErrMultipleButtons},
		{counts: [3]int{1, 1, 1}, err: ErrMultipleButtons},
		{counts: [3]int{5, 0, 5}, err: ErrMultipleButtons},
	}

	for _, tt := range tests {
		req, ok, err := Classify(tt.counts)
		if err != tt.err {
			t.Errorf("Classify(%v) error = %v, want %v", tt.counts, err, tt.err)
			continue
		}
		if ok != tt.ok {
			t.Errorf("Classify(%v) ok = %v, want %v", tt.counts, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if req.Code() != tt.code || req.Button != tt.button || req.Motor != tt.motor || req.Display != tt.display {
			t.Errorf("Classify(%v) = %+v, want code %d", tt.counts, req, tt.code)
		}
		if req.Presses != tt.counts[tt.button-1] {
			t.Errorf("Classify(%v) presses = %d", tt.counts, req.Presses)
		}
	}
}

func TestCounterCountsRisingEdges(t *testing.T) {
	var c Counter
	seq := []bool{false, true, true, true, false, true, false, false, true}
	for _, on := range seq {
		c.Sample([3]bool{on, false, on})
	}
	if c.Counts != [3]int{3, 0, 3} {
		t.Errorf("Expected 3 presses on buttons 1 and 3, got %v", c.Counts)
	}

	// held from the first sample counts once
	var held Counter
	for i := 0; i < 10; i++ {
		held.Sample([3]bool{false, true, false})
	}
	if held.Counts[1] != 1 {
		t.Errorf("Held button counted %d times", held.Counts[1])
	}
}

// scripted returns, for each read round, the next row of levels.
type scripted struct {
	mu    sync.Mutex
	rows  [][NumButtons]bool
	reads int
}

func (s *scripted) ConfigureOutput(core.GPIOPin) error { return nil }
func (s *scripted) ConfigureInput(core.GPIOPin) error  { return nil }
func (s *scripted) SetPin(core.GPIOPin, bool) error    { return nil }

func (s *scripted) GetPin(pin core.GPIOPin) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round := s.reads / NumButtons
	s.reads++
	if round >= len(s.rows) {
		return false, nil
	}
	for i, p := range testPins {
		if p == pin {
			return s.rows[round][i], nil
		}
	}
	return false, nil
}

// presses builds rows pressing button (0-based) n times.
func presses(button, n, samples int) [][NumButtons]bool {
	rows := make([][NumButtons]bool, samples)
	for i := 0; i < n; i++ {
		rows[1+i*3][button] = true
		rows[2+i*3][button] = true
	}
	return rows
}

func testTiming() config.Timing {
	return config.Timing{
		ButtonWindow: 20 * time.Microsecond,
		ButtonSample: time.Microsecond,
	}
}

type logLines struct {
	mu    sync.Mutex
	lines []string
}

func (l *logLines) write(s string) {
	l.mu.Lock()
	l.lines = append(l.lines, s)
	l.mu.Unlock()
}

func (l *logLines) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

func newScriptedTask(t *testing.T, rows [][NumButtons]bool) (*Task, *control.Bus, *logLines) {
	t.Helper()
	bus := control.NewBus(control.DefaultQueueSizes())
	out := &logLines{}
	task, err := New(bus, &scripted{rows: rows}, testPins, testTiming(), core.NewLog(out.write))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return task, bus, out
}

func TestWindowPostsMotorRequest(t *testing.T) {
	task, bus, out := newScriptedTask(t, presses(1, 3, 20))

	counts, err := task.Window(context.Background())
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if counts != [3]int{0, 3, 0} {
		t.Errorf("Expected counts [0 3 0], got %v", counts)
	}

	req, ok := bus.MotorRequests.TryReceive()
	if !ok || req != control.FullRotation {
		t.Errorf("Expected full-rotation request, got %v (%v)", req, ok)
	}
	if bus.DisplayRequests.Len() != 0 {
		t.Error("Motor request leaked onto display queue")
	}
	if !strings.Contains(out.joined(), "button2 pressed 3 times") {
		t.Errorf("Missing press log, got:\n%s", out.joined())
	}
}

func TestWindowPostsDisplayRequest(t *testing.T) {
	task, bus, _ := newScriptedTask(t, presses(2, 2, 20))

	if _, err := task.Window(context.Background()); err != nil {
		t.Fatalf("Window: %v", err)
	}
	req, ok := bus.DisplayRequests.TryReceive()
	if !ok || req != control.DisplayHumidity {
		t.Errorf("Expected display-humidity request, got %v (%v)", req, ok)
	}
	if task.Stats.Posted != 1 {
		t.Errorf("Expected 1 posted, got %d", task.Stats.Posted)
	}
}

func TestWindowRejectsInvalidInput(t *testing.T) {
	multi := presses(0, 1, 20)
	multi[10][2] = true

	tests := []struct {
		name string
		rows [][NumButtons]bool
		log  string
	}{
		{"multiple buttons", multi, "Error: only press 1 button at a time"},
		{"too many presses", presses(0, 4, 20), "Error: button presses must be < 3 in 2 seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, bus, out := newScriptedTask(t, tt.rows)
			if _, err := task.Window(context.Background()); err != nil {
				t.Fatalf("Window: %v", err)
			}
			if bus.MotorRequests.Len() != 0 || bus.DisplayRequests.Len() != 0 {
				t.Error("Invalid window posted a request")
			}
			if task.Stats.Rejected != 1 {
				t.Errorf("Expected 1 rejected window, got %d", task.Stats.Rejected)
			}
			if !strings.Contains(out.joined(), tt.log) {
				t.Errorf("Missing %q in log:\n%s", tt.log, out.joined())
			}
		})
	}
}

func TestWindowWithoutPressesIsSilent(t *testing.T) {
	task, bus, out := newScriptedTask(t, nil)
	if _, err := task.Window(context.Background()); err != nil {
		t.Fatalf("Window: %v", err)
	}
	if bus.MotorRequests.Len() != 0 || bus.DisplayRequests.Len() != 0 || out.joined() != "" {
		t.Error("Idle window produced output")
	}
}

func TestFullRequestQueueDrops(t *testing.T) {
	task, bus, _ := newScriptedTask(t, presses(0, 1, 20))
	bus.MotorRequests.TrySend(control.RotateCW)
	bus.MotorRequests.TrySend(control.RotateCW)

	if _, err := task.Window(context.Background()); err != nil {
		t.Fatalf("Window: %v", err)
	}
	if task.Stats.Dropped != 1 {
		t.Errorf("Expected 1 dropped request, got %d", task.Stats.Dropped)
	}
}

func TestNewConfiguresInputs(t *testing.T) {
	gpio := sim.NewGPIO()
	bus := control.NewBus(control.DefaultQueueSizes())
	if _, err := New(bus, gpio, testPins, testTiming(), nil); err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, pin := range testPins {
		if gpio.Mode(pin) != sim.ModeInput {
			t.Errorf("Pin %d not configured as input", pin)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	gpio := sim.NewGPIO()
	bus := control.NewBus(control.DefaultQueueSizes())
	task, err := New(bus, gpio, testPins, testTiming(), nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := task.Run(ctx); err == nil {
		t.Error("Run returned nil after cancel")
	}
	if task.Stats.Windows == 0 {
		t.Error("No windows sampled")
	}
}
