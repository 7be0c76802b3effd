package sim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"thermostep/core"
)

type scriptBoard struct {
	gpio   *GPIO
	digits *Digits
	chip   *HDC1080
	script *Script

	mu    sync.Mutex
	lines []string
	rises [3]int
}

func newScriptBoard(t *testing.T) *scriptBoard {
	t.Helper()
	b := &scriptBoard{chip: NewHDC1080()}
	b.gpio, b.digits = newDisplayLines(t)
	b.gpio.Watch(func(pin core.GPIOPin, level bool) {
		for i, p := range testButtons {
			if pin == p && level {
				b.mu.Lock()
				b.rises[i]++
				b.mu.Unlock()
			}
		}
	})
	presser := NewPresser(b.gpio, testButtons)
	presser.Hold, presser.Gap = time.Millisecond, time.Millisecond
	b.script = NewScript(presser, b.chip, b.digits, func(s string) {
		b.mu.Lock()
		b.lines = append(b.lines, s)
		b.mu.Unlock()
	})
	return b
}

func TestScriptDrivesBoard(t *testing.T) {
	b := newScriptBoard(t)
	show(b.gpio, testLeft, 0x07)
	show(b.gpio, testRight, 0x4F)

	err := b.script.Run(context.Background(), `
		set_temperature(31.5)
		set_humidity(55)
		press(1)
		press(3, 2)
		wait(1)
		if display() ~= "73" then error("display reads " .. display()) end
		log("done " .. display())
	`)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if c, h := b.chip.Conditions(); c != 31.5 || h != 55 {
		t.Errorf("conditions not applied: %v %v", c, h)
	}
	if b.rises != [3]int{1, 0, 2} {
		t.Errorf("Expected presses [1 0 2], got %v", b.rises)
	}
	if len(b.lines) != 1 || b.lines[0] != "[SCRIPT] done 73" {
		t.Errorf("log lines: %q", b.lines)
	}
}

func TestScriptExpect(t *testing.T) {
	b := newScriptBoard(t)
	go func() {
		time.Sleep(20 * time.Millisecond)
		show(b.gpio, testLeft, 0x79)
		show(b.gpio, testRight, 0x79)
	}()

	if err := b.script.Run(context.Background(), `expect("EE", 2000)`); err != nil {
		t.Fatalf("expect failed: %v", err)
	}

	err := b.script.Run(context.Background(), `expect("99", 10)`)
	if err == nil || !strings.Contains(err.Error(), `display shows "EE"`) {
		t.Errorf("Expected expect timeout, got %v", err)
	}
}

func TestScriptErrors(t *testing.T) {
	b := newScriptBoard(t)
	tests := []string{
		`press(7)`,
		`press(1, 0)`,
		`set_humidity(120)`,
		`wait("soon")`,
		`os.exit(1)`,
		`this is not lua`,
	}
	for _, src := range tests {
		if err := b.script.Run(context.Background(), src); err == nil {
			t.Errorf("Run(%q) succeeded", src)
		}
	}
}

func TestScriptCancel(t *testing.T) {
	b := newScriptBoard(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := b.script.Run(ctx, `wait(10000)`)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancelled script kept waiting")
	}
}

func TestScriptRunFile(t *testing.T) {
	b := newScriptBoard(t)
	path := filepath.Join(t.TempDir(), "scenario.lua")
	if err := os.WriteFile(path, []byte("set_temperature(18)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := b.script.RunFile(context.Background(), path); err != nil {
		t.Fatalf("RunFile failed: %v", err)
	}
	if c, _ := b.chip.Conditions(); c != 18 {
		t.Errorf("Expected 18C, got %v", c)
	}
	if err := b.script.RunFile(context.Background(), path+".missing"); err == nil {
		t.Error("Expected error for missing scenario")
	}
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.lua")
	if err := os.WriteFile(path, []byte("-- v1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- WatchFile(ctx, path, func() error {
			calls <- struct{}{}
			return nil
		})
	}()

	// the watcher may not be registered yet; keep writing until seen
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for seen := false; !seen; {
		select {
		case <-calls:
			seen = true
		case <-tick.C:
			os.WriteFile(path, []byte("-- v2\n"), 0o644)
			os.WriteFile(filepath.Join(dir, "other.lua"), []byte("x"), 0o644)
		case <-deadline:
			t.Fatal("write not reported")
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WatchFile did not stop")
	}
}
