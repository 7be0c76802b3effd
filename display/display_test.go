package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"thermostep/config"
	"thermostep/control"
	"thermostep/core"
	"thermostep/sim"
)

var (
	testSegments = [8]core.GPIOPin{26, 27, 29, 18, 25, 7, 28, 24}
	testLeft     = core.GPIOPin(10)
	testRight    = core.GPIOPin(11)
)

func TestDigitPatterns(t *testing.T) {
	want := []string{"abcdef", "bc", "abdeg", "abcdg", "bcfg", "acdfg", "acdefg", "abc", "abcdefg", "abcdfg"}
	for d, w := range want {
		p, ok := Digit(d)
		if !ok || p.String() != w {
			t.Errorf("Digit(%d) = %s, want %s", d, p, w)
		}
	}
	if _, ok := Digit(10); ok {
		t.Error("Digit(10) should not decode")
	}
}

func TestCodePatterns(t *testing.T) {
	want := map[int]string{
		993: "abcdef",
		994: "abefg",
		995: "bcefg",
		996: "aefg",
		997: "cdefg",
		998: "adef",
		999: "adefg",
	}
	for code, w := range want {
		p, ok := Code(code)
		if !ok || p.String() != w {
			t.Errorf("Code(%d) = %s, want %s", code, p, w)
		}
	}
	if _, ok := Code(992); ok {
		t.Error("992 has no pattern")
	}
}

func TestDecodeReadings(t *testing.T) {
	tests := []struct {
		value       int
		left, right int
	}{
		{73, 7, 3},
		{5, 0, 5},
		{0, 0, 0},
		{99, 9, 9},
	}

	for _, tt := range tests {
		m := control.Reading(control.Humidity, control.Sample{Humidity: tt.value})
		l, lok := Decode(m, Left)
		r, rok := Decode(m, Right)
		wl, _ := Digit(tt.left)
		wr, _ := Digit(tt.right)
		if !lok || !rok || l != wl || r != wr {
			t.Errorf("Decode(%d) = %s/%s, want %s/%s", tt.value, l, r, wl, wr)
		}
	}

	// 38C is 100F: too wide for two digits
	for _, v := range []int{100, 150, -4} {
		m := control.Reading(control.Humidity, control.Sample{Humidity: v})
		l, lok := Decode(m, Left)
		r, rok := Decode(m, Right)
		if !lok || !rok || l != OutOfRange || r != OutOfRange {
			t.Errorf("Decode(%d) = %s/%s, want %s on both", v, l, r, OutOfRange)
		}
	}
	hot := control.Reading(control.Temperature, control.Sample{TempC: 38, TempF: 100})
	if l, _ := Decode(hot, Left); l != OutOfRange {
		t.Errorf("Decode(100F) = %s, want %s", l, OutOfRange)
	}

	// temperature readings display Fahrenheit
	m := control.Reading(control.Temperature, control.Sample{TempC: 23, TempF: 73})
	if l, _ := Decode(m, Left); l != digitPatterns[7] {
		t.Errorf("Expected tens digit of 73F, got %s", l)
	}
}

func TestDecodeReservedSameOnBothSides(t *testing.T) {
	msgs := []control.Message{
		control.Overflow(),
		control.EmergencyStop(),
		control.MotorStatus(control.StatusMoveOnTemp),
		control.MotorStatus(control.StatusMoveOnHumidity),
		control.MotorStatus(control.StatusRotateCW),
		control.MotorStatus(control.StatusRotateCCW),
		control.MotorStatus(control.StatusFullRotation),
	}
	for _, m := range msgs {
		l, lok := Decode(m, Left)
		r, rok := Decode(m, Right)
		if !lok || !rok || l != r {
			t.Errorf("Decode(%v) = %s/%s, want equal patterns", m, l, r)
		}
		want, _ := Code(m.Code())
		if l != want {
			t.Errorf("Decode(%v) = %s, want %s", m, l, want)
		}
	}

	if _, ok := Decode(control.Message{}, Left); ok {
		t.Error("Empty message decoded")
	}
}

func newPanel(t *testing.T) (*Panel, *sim.GPIO) {
	t.Helper()
	gpio := sim.NewGPIO()
	p, err := NewPanel(gpio, testSegments, testLeft, testRight)
	if err != nil {
		t.Fatalf("NewPanel: %v", err)
	}
	return p, gpio
}

func segmentsOn(gpio *sim.GPIO) Pattern {
	var p Pattern
	for i, on := range gpio.Levels(testSegments[:]...) {
		if on {
			p |= 1 << i
		}
	}
	return p
}

func TestPanelShow(t *testing.T) {
	p, gpio := newPanel(t)
	four, _ := Digit(4)

	if err := p.Show(Left, four); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if !gpio.Level(testLeft) || gpio.Level(testRight) {
		t.Error("Left digit not selected alone")
	}
	if got := segmentsOn(gpio); got != four {
		t.Errorf("Segments = %s, want %s", got, four)
	}

	if err := p.Show(Right, Blank); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if gpio.Level(testLeft) || !gpio.Level(testRight) {
		t.Error("Right digit not selected alone")
	}
	if segmentsOn(gpio) != Blank {
		t.Error("Segments lit for blank")
	}

	if err := p.Off(); err != nil {
		t.Fatal(err)
	}
	if gpio.Level(testLeft) || gpio.Level(testRight) {
		t.Error("Digit still selected after Off")
	}
}

func testTiming() config.Timing {
	return config.Timing{RefreshFrames: 15, Refresh: time.Microsecond}
}

func TestFrameKeepsLastDigitOnMiss(t *testing.T) {
	p, _ := newPanel(t)
	bus := control.NewBus(control.DefaultQueueSizes())
	task := NewTask(Right, bus, p, testTiming(), nil)
	ctx := context.Background()

	if err := task.Frame(ctx); err != nil {
		t.Fatal(err)
	}
	if task.Current() != Blank {
		t.Errorf("Expected blank before any value, got %s", task.Current())
	}

	bus.Control.TrySend(control.Reading(control.Humidity, control.Sample{Humidity: 42}))
	if err := task.Frame(ctx); err != nil {
		t.Fatal(err)
	}
	two, _ := Digit(2)
	if task.Current() != two {
		t.Errorf("Expected 2, got %s", task.Current())
	}

	bus.Control.Reset()
	if err := task.Frame(ctx); err != nil {
		t.Fatal(err)
	}
	if task.Current() != two {
		t.Errorf("Empty queue changed the digit to %s", task.Current())
	}
	if task.Frames != 3 {
		t.Errorf("Expected 3 frames, got %d", task.Frames)
	}
	if bus.Control.Len() != 0 {
		t.Error("Display task consumed from the control queue")
	}
}

func TestTasksShareLinesWithoutOverlap(t *testing.T) {
	p, gpio := newPanel(t)
	bus := control.NewBus(control.DefaultQueueSizes())
	bus.Control.TrySend(control.Reading(control.Humidity, control.Sample{Humidity: 58}))

	five, _ := Digit(5)
	eight, _ := Digit(8)

	var (
		mu       sync.Mutex
		overlaps int
		wrong    int
		leftOn   int
		rightOn  int
	)
	gpio.Watch(func(pin core.GPIOPin, level bool) {
		if !level || (pin != testLeft && pin != testRight) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if gpio.Level(testLeft) && gpio.Level(testRight) {
			overlaps++
		}
		want := five
		if pin == testRight {
			want = eight
			rightOn++
		} else {
			leftOn++
		}
		if segmentsOn(gpio) != want {
			wrong++
		}
	})

	left := NewTask(Left, bus, p, testTiming(), nil)
	right := NewTask(Right, bus, p, testTiming(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var wg sync.WaitGroup
	for _, task := range []*Task{left, right} {
		wg.Add(1)
		go func(task *Task) {
			defer wg.Done()
			task.Run(ctx)
		}(task)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if overlaps != 0 {
		t.Errorf("Both digits selected %d times", overlaps)
	}
	if wrong != 0 {
		t.Errorf("Digit selected with the other digit's segments %d times", wrong)
	}
	if leftOn == 0 || rightOn == 0 {
		t.Errorf("Expected both digits lit, got left=%d right=%d", leftOn, rightOn)
	}
}
