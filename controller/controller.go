// Package controller builds the control bus once and runs the five
// tasks on it, plus the telemetry reporter when a console is attached.
package controller

import (
	"context"
	"errors"
	"io"
	"sync"

	"thermostep/buttons"
	"thermostep/config"
	"thermostep/control"
	"thermostep/core"
	"thermostep/display"
	"thermostep/hdc1080"
	"thermostep/motor"
	"thermostep/sensor"
	"thermostep/stepper"
	"thermostep/telemetry"

	"tinygo.org/x/drivers"
)

var (
	ErrInitialized    = errors.New("controller: already initialized")
	ErrNotInitialized = errors.New("controller: not initialized")
	ErrNoGPIO         = errors.New("controller: no GPIO driver")
	ErrNoI2C          = errors.New("controller: no I2C bus")
)

// Hardware is what a target hands to the system.
type Hardware struct {
	GPIO core.GPIODriver
	I2C  drivers.I2C

	// Console receives telemetry lines. Nil disables telemetry.
	Console io.Writer
	// Debug receives log lines. Nil discards them.
	Debug core.DebugWriter
}

// System owns the bus and every task.
type System struct {
	config *config.Config
	Timing config.Timing // may be replaced before Initialize

	Log *core.Log
	Bus *control.Bus

	Device   *hdc1080.Device
	Stepper  *stepper.Motor
	Panel    *display.Panel
	Sensor   *sensor.Task
	Buttons  *buttons.Task
	Motor    *motor.Task
	Left     *display.Task
	Right    *display.Task
	Reporter *telemetry.Reporter

	initialized bool
	running     bool
	mu          sync.Mutex
}

// New creates a system from a validated configuration.
func New(cfg *config.Config) (*System, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &System{config: cfg, Timing: cfg.Timings()}, nil
}

// Config returns the configuration the system was built from.
func (s *System) Config() *config.Config {
	return s.config
}

// Initialize configures the lines, creates the queues and semaphores,
// and builds every task around them.
func (s *System) Initialize(hw Hardware) error {
	if s.initialized {
		return ErrInitialized
	}
	if hw.GPIO == nil {
		return ErrNoGPIO
	}
	if hw.I2C == nil {
		return ErrNoI2C
	}

	cfg := s.config
	s.Log = core.NewLog(hw.Debug)
	s.Log.SetEnabled(cfg.Console.Debug)

	q := cfg.Queues
	s.Bus = control.NewBus(control.QueueSizes{
		Control:           q.ControlCapacity,
		OverflowThreshold: q.OverflowThreshold,
		Requests:          q.RequestCapacity,
	})

	s.Device = hdc1080.New(hw.I2C)
	s.Device.Address = uint16(cfg.Sensor.Address)
	s.Device.ConversionDelay = s.Timing.ConversionDelay

	var err error
	s.Stepper, err = stepper.New(hw.GPIO, cfg.Pins.CoilPins(), s.Timing.StepPhase)
	if err != nil {
		return err
	}

	left, right := cfg.Pins.SelectPins()
	s.Panel, err = display.NewPanel(hw.GPIO, cfg.Pins.SegmentPins(), left, right)
	if err != nil {
		return err
	}

	s.Buttons, err = buttons.New(s.Bus, hw.GPIO, cfg.Pins.ButtonPins(), s.Timing, s.Log)
	if err != nil {
		return err
	}

	s.Sensor = sensor.New(s.Bus, s.Device, s.Timing, s.Log)
	s.Motor = motor.New(s.Bus, s.Stepper, s.Timing, s.Log)
	s.Left = display.NewTask(display.Left, s.Bus, s.Panel, s.Timing, s.Log)
	s.Right = display.NewTask(display.Right, s.Bus, s.Panel, s.Timing, s.Log)

	if hw.Console != nil && cfg.Console.Telemetry {
		s.Reporter = telemetry.NewReporter(s.Bus, hw.Console, s.Timing.Telemetry, s.Log)
	}

	s.initialized = true
	s.Log.Println("[CTRL] initialized, control queue " + core.Itoa(s.Bus.Control.Cap()) +
		", overflow above " + core.Itoa(s.Bus.OverflowThreshold))
	return nil
}

// Run starts every task and blocks until ctx is done or a task fails.
// On return the coils are de-energized and the display is blanked.
func (s *System) Run(ctx context.Context) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("controller: already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.Log.StartAsync(s.config.Console.AsyncBuffer)
	defer s.Log.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := []struct {
		id  core.TaskID
		run func(context.Context) error
	}{
		{core.TaskSensor, s.Sensor.Run},
		{core.TaskButton, s.Buttons.Run},
		{core.TaskMotor, s.Motor.Run},
		{core.TaskDisplayLeft, s.Left.Run},
		{core.TaskDisplayRight, s.Right.Run},
	}
	if s.Reporter != nil {
		tasks = append(tasks, struct {
			id  core.TaskID
			run func(context.Context) error
		}{core.TaskController, s.Reporter.Run})
	}

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for _, task := range tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := task.run(ctx)
			if err == nil || ctx.Err() != nil {
				return
			}
			once.Do(func() {
				firstErr = err
				s.Log.Println("[CTRL] " + task.id.String() + " task failed: " + err.Error())
				cancel()
			})
		}()
	}
	wg.Wait()

	_ = s.Stepper.Release()
	_ = s.Panel.Off()

	if firstErr != nil {
		s.Log.DumpEvents()
		return firstErr
	}
	return ctx.Err()
}
