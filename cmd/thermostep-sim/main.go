package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"thermostep/config"
	"thermostep/controller"
	"thermostep/sim"
)

type assignments []string

func (a *assignments) String() string     { return strings.Join(*a, ",") }
func (a *assignments) Set(v string) error { *a = append(*a, v); return nil }

var (
	configPath = flag.String("config", "", "Board configuration (.json, .toml, .yaml)")
	scriptPath = flag.String("script", "", "Lua scenario to run against the board")
	watch      = flag.Bool("watch", false, "Re-run the scenario each time the file changes")
	headless   = flag.Bool("headless", false, "No terminal panel; exit when the scenario ends")
	logPath    = flag.String("log", "", "Debug log file (default: stderr when headless, discarded otherwise)")
	telemetry  = flag.Bool("telemetry", false, "Write telemetry lines to stdout (headless only)")
	celsius    = flag.Float64("temperature", 20, "Initial temperature in °C")
	humidity   = flag.Float64("humidity", 40, "Initial relative humidity in %")
	overrides  assignments
)

func main() {
	flag.Var(&overrides, "set", "Override a setting, e.g. -set timing.emergency_hold_ms=1000 (repeatable)")
	flag.Parse()

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			return nil, err
		}
	}
	return config.Override(cfg, overrides)
}

func debugWriter() (func(string), io.Closer, error) {
	var w io.Writer
	var closer io.Closer = io.NopCloser(nil)
	switch {
	case *logPath != "":
		f, err := os.Create(*logPath)
		if err != nil {
			return nil, nil, err
		}
		w, closer = f, f
	case *headless:
		w = os.Stderr
	default:
		return func(string) {}, closer, nil
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return func(msg string) { logger.Debug(msg) }, closer, nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if *headless && *scriptPath == "" {
		return errors.New("-headless needs -script")
	}

	debug, closer, err := debugWriter()
	if err != nil {
		return err
	}
	defer closer.Close()

	sys, err := controller.New(cfg)
	if err != nil {
		return err
	}

	gpio := sim.NewGPIO()
	chip := sim.NewHDC1080()
	chip.SetTemperature(*celsius)
	chip.SetHumidity(*humidity)

	hw := controller.Hardware{GPIO: gpio, I2C: chip, Debug: debug}
	if *telemetry && *headless {
		hw.Console = os.Stdout
	}
	if err := sys.Initialize(hw); err != nil {
		return err
	}

	left, right := cfg.Pins.SelectPins()
	digits := sim.NewDigits(gpio, cfg.Pins.SegmentPins(), left, right)
	presser := sim.NewPresser(gpio, cfg.Pins.ButtonPins())
	// hold each press across several samples so none is missed
	presser.Hold = 3 * sys.Timing.ButtonSample
	presser.Gap = 3 * sys.Timing.ButtonSample

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sysDone := make(chan error, 1)
	go func() { sysDone <- sys.Run(ctx) }()

	var panel *sim.Panel
	if !*headless {
		screen, err := tcell.NewScreen()
		if err != nil {
			return err
		}
		if err := screen.Init(); err != nil {
			return err
		}
		defer screen.Fini()
		panel = sim.NewPanel(screen, digits, presser, chip)
	}

	scriptDone := make(chan error, 1)
	if *scriptPath != "" {
		script := sim.NewScript(presser, chip, digits, debug)
		go func() { scriptDone <- runScript(ctx, script, panel) }()
	}

	if panel != nil {
		err = panel.Run(ctx, 50*time.Millisecond)
	} else {
		err = <-scriptDone
	}
	cancel()
	if sysErr := <-sysDone; sysErr != nil && !errors.Is(sysErr, context.Canceled) {
		return sysErr
	}
	if err == nil && *headless {
		fmt.Printf("display %q, motor %d/%d steps cw/ccw, %d emergencies, sensor %d bus errors\n",
			digits.Text(), sys.Motor.Stats.StepsCW, sys.Motor.Stats.StepsCCW,
			sys.Motor.Stats.Emergencies, sys.Sensor.Stats.BusErrors)
	}
	return err
}

func runScript(ctx context.Context, script *sim.Script, panel *sim.Panel) error {
	status := func(s string) {
		if panel != nil {
			panel.SetStatus(s)
		}
	}

	once := func() error {
		status("running " + *scriptPath)
		err := script.RunFile(ctx, *scriptPath)
		if err != nil {
			status("scenario failed: " + err.Error())
		} else {
			status("scenario passed")
		}
		return err
	}

	err := once()
	if !*watch {
		return err
	}
	return sim.WatchFile(ctx, *scriptPath, func() error {
		if err := once(); err != nil && ctx.Err() != nil {
			return err
		}
		return nil
	})
}
