package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"thermostep/host/monitor"
	"thermostep/host/serial"
)

var (
	device = flag.String("device", "/dev/ttyACM0", "Serial device path, or - for stdin")
	baud   = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	format = flag.String("format", "text", "Output format: text or json")
	quiet  = flag.Bool("quiet", false, "Only print telemetry, not debug lines")
)

func main() {
	flag.Parse()

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	f, err := monitor.ParseFormat(*format)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	follow := false
	if *device != "-" {
		cfg := serial.DefaultConfig(*device)
		cfg.Baud = *baud
		port, err := serial.Open(cfg)
		if err != nil {
			return err
		}
		defer port.Close()
		if err := port.Flush(); err != nil {
			return err
		}
		in, follow = port, true
		fmt.Fprintf(os.Stderr, "Connected to %s\n", *device)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := monitor.New(in, os.Stdout, f)
	m.Follow = follow
	m.Quiet = *quiet
	err = m.Run(ctx)

	fmt.Fprintf(os.Stderr, "%d lines, %d snapshots, %d bad frames, %d missed\n",
		m.Stats.Lines, m.Stats.Snapshots, m.Stats.BadFrames, m.Stats.Missed)
	return err
}
