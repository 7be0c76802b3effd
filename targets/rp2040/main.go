//go:build rp2040

package main

import (
	"context"
	"machine"
	"time"

	"thermostep/config"
	"thermostep/controller"
)

func main() {
	// Clear any watchdog state left over from before the reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	// Give the USB console time to enumerate so the startup lines are seen
	time.Sleep(2 * time.Second)

	cfg := config.Default()

	bus, err := ConfigureI2C(cfg.Sensor)
	if err != nil {
		halt("[CTRL] i2c: " + err.Error())
	}

	sys, err := controller.New(cfg)
	if err != nil {
		halt("[CTRL] config: " + err.Error())
	}

	hw := controller.Hardware{
		GPIO:  NewRPGPIODriver(),
		I2C:   bus,
		Debug: func(s string) { println(s) },
	}
	if cfg.Console.Telemetry {
		hw.Console = machine.Serial
	}
	if err := sys.Initialize(hw); err != nil {
		halt("[CTRL] init: " + err.Error())
	}

	err = sys.Run(context.Background())
	halt("[CTRL] stopped: " + err.Error())
}

// halt repeats msg on the console forever.
func halt(msg string) {
	for {
		println(msg)
		time.Sleep(time.Second)
	}
}
