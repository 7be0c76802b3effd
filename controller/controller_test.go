package controller

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"thermostep/config"
	"thermostep/control"
	"thermostep/core"
	"thermostep/sim"
	"thermostep/telemetry"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fastTiming() config.Timing {
	return config.Timing{
		ButtonWindow:      30 * time.Millisecond,
		ButtonSample:      time.Millisecond,
		StepPhase:         10 * time.Microsecond,
		RefreshFrames:     2,
		Refresh:           100 * time.Microsecond,
		OverflowPause:     20 * time.Millisecond,
		EmergencyHold:     200 * time.Millisecond,
		IdleHold:          time.Millisecond,
		Settle:            100 * time.Microsecond,
		StatusSettle:      100 * time.Microsecond,
		Poll:              100 * time.Microsecond,
		Telemetry:         time.Millisecond,
		FullRotationSteps: 10,
	}
}

type board struct {
	sys     *System
	gpio    *sim.GPIO
	chip    *sim.HDC1080
	digits  *sim.Digits
	presser *sim.Presser
	console *syncBuffer
}

func newBoard(t *testing.T) *board {
	t.Helper()
	cfg := config.Default()
	sys, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	sys.Timing = fastTiming()

	b := &board{
		sys:     sys,
		gpio:    sim.NewGPIO(),
		chip:    sim.NewHDC1080(),
		console: &syncBuffer{},
	}
	b.chip.SetTemperature(23)
	b.chip.SetHumidity(41)

	if err := sys.Initialize(Hardware{GPIO: b.gpio, I2C: b.chip, Console: b.console}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	left, right := cfg.Pins.SelectPins()
	b.digits = sim.NewDigits(b.gpio, cfg.Pins.SegmentPins(), left, right)
	b.presser = sim.NewPresser(b.gpio, cfg.Pins.ButtonPins())
	b.presser.Hold = 5 * time.Millisecond
	b.presser.Gap = 5 * time.Millisecond
	return b
}

func (b *board) start(t *testing.T) (context.Context, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.sys.Run(ctx) }()
	return ctx, func() {
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not stop")
		}
	}
}

func (b *board) waitText(t *testing.T, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if b.digits.Text() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("display shows %q, want %q", b.digits.Text(), want)
}

func TestSystemEndToEnd(t *testing.T) {
	b := newBoard(t)
	ctx, stop := b.start(t)

	// button 3 once: show temperature, 23°C = 73°F
	if err := b.presser.Press(ctx, 3, 1); err != nil {
		t.Fatal(err)
	}
	b.waitText(t, "73")

	b.chip.SetTemperature(30)
	b.waitText(t, "86")

	// button 2 once: rotate clockwise
	coil := core.GPIOPin(b.sys.Config().Pins.Coils[0])
	if err := b.presser.Press(ctx, 2, 1); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for b.gpio.Writes(coil) < 10 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if b.gpio.Writes(coil) < 10 {
		t.Fatalf("coil IN1 written %d times, motor not stepping", b.gpio.Writes(coil))
	}

	// motor status on the display
	b.sys.Bus.DisplayRequests.TrySend(control.DisplayMotorStatus)
	b.waitText(t, "FF")

	// emergency stop: E on both digits, then the resume status
	b.sys.Bus.MotorRequests.TrySend(control.StopEmergency)
	b.waitText(t, "EE")
	b.waitText(t, "CC")

	if err := b.presser.Press(ctx, 3, 1); err != nil {
		t.Fatal(err)
	}
	b.waitText(t, "86")

	stop()

	if b.digits.Overlaps() != 0 {
		t.Errorf("both digits selected at once %d times", b.digits.Overlaps())
	}
	for _, m := range b.sys.Bus.Control.Snapshot() {
		if control.IsEmergencyStop(m) {
			t.Error("emergency sentinel left on the Control Queue")
		}
	}
	if b.sys.Bus.SensorHalt.Engaged() {
		t.Error("sensor still halted")
	}
	if b.sys.Motor.Mode() != 0 {
		t.Errorf("Expected idle motor after emergency stop, got %v", b.sys.Motor.Mode())
	}
	if b.sys.Motor.Stats.Emergencies != 1 {
		t.Errorf("Expected 1 emergency, got %d", b.sys.Motor.Stats.Emergencies)
	}
	coils := b.sys.Config().Pins.CoilPins()
	for _, l := range b.gpio.Levels(coils[:]...) {
		if l {
			t.Error("coil left energized after Run")
		}
	}

	var sawHalt, sawReading bool
	for _, line := range strings.Split(strings.TrimSpace(b.console.String()), "\n") {
		s, err := telemetry.ParseLine(line)
		if err != nil {
			t.Fatalf("bad telemetry line %q: %v", line, err)
		}
		if s.Head.Kind == control.KindEmergencyStop && s.Halted {
			sawHalt = true
		}
		if s.Head.Kind == control.KindReading && s.Head.Sample.TempF == 73 {
			sawReading = true
		}
	}
	if !sawHalt || !sawReading {
		t.Errorf("telemetry missed states: halt=%v reading=%v", sawHalt, sawReading)
	}
}

func TestInitializeErrors(t *testing.T) {
	sys, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := sys.Run(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
	if err := sys.Initialize(Hardware{I2C: sim.NewHDC1080()}); !errors.Is(err, ErrNoGPIO) {
		t.Errorf("Expected ErrNoGPIO, got %v", err)
	}
	if err := sys.Initialize(Hardware{GPIO: sim.NewGPIO()}); !errors.Is(err, ErrNoI2C) {
		t.Errorf("Expected ErrNoI2C, got %v", err)
	}

	hw := Hardware{GPIO: sim.NewGPIO(), I2C: sim.NewHDC1080()}
	if err := sys.Initialize(hw); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := sys.Initialize(hw); !errors.Is(err, ErrInitialized) {
		t.Errorf("Expected ErrInitialized, got %v", err)
	}
	if sys.Reporter != nil {
		t.Error("reporter built without a console")
	}
	if sys.Bus.Control.Cap() != 12 {
		t.Errorf("Expected control capacity 12, got %d", sys.Bus.Control.Cap())
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pins.SelectRight = cfg.Pins.SelectLeft
	if _, err := New(cfg); !errors.Is(err, config.ErrPinConflict) {
		t.Errorf("Expected ErrPinConflict, got %v", err)
	}
}

func TestRunStopsOnTaskFailure(t *testing.T) {
	sys, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	sys.Timing = fastTiming()

	var mu sync.Mutex
	var lines []string
	gpio := sim.NewGPIO()
	hw := Hardware{
		GPIO: gpio,
		I2C:  sim.NewHDC1080(),
		Debug: func(s string) {
			mu.Lock()
			lines = append(lines, s)
			mu.Unlock()
		},
	}
	if err := sys.Initialize(hw); err != nil {
		t.Fatal(err)
	}

	// pull a coil line out from under the stepper
	coil := core.GPIOPin(sys.Config().Pins.Coils[0])
	if err := gpio.ConfigureInput(coil); err != nil {
		t.Fatal(err)
	}
	sys.Bus.MotorRequests.TrySend(control.RotateCW)

	done := make(chan error, 1)
	go func() { done <- sys.Run(context.Background()) }()
	select {
	case err := <-done:
		if !errors.Is(err, sim.ErrNotOutput) {
			t.Errorf("Expected ErrNotOutput, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after a task failed")
	}

	mu.Lock()
	defer mu.Unlock()
	var failed, dumped bool
	for _, l := range lines {
		failed = failed || strings.Contains(l, "[CTRL] motor task failed")
		dumped = dumped || strings.Contains(l, "Coordination Ring Dump")
	}
	if !failed || !dumped {
		t.Errorf("Expected failure line and event dump, got %q", lines)
	}
}
