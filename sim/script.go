package sim

import (
	"context"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"thermostep/core"
)

// DefaultExpectTimeout bounds expect() calls that give no timeout.
const DefaultExpectTimeout = 5 * time.Second

// Script runs Lua scenarios against a simulated board. Scenarios see
// these globals:
//
//	press(button [, times])      press a button, 1-based
//	wait(ms)                     sleep
//	set_temperature(celsius)
//	set_humidity(percent)
//	display()                    the two digits as a string, e.g. "73"
//	expect(text [, timeout_ms])  wait for the display to read text
//	log(msg)
//
// A Script is used from one goroutine at a time.
type Script struct {
	presser *Presser
	chip    *HDC1080
	digits  *Digits
	log     core.DebugWriter
}

// NewScript binds a script runner to the board parts. log may be nil.
func NewScript(presser *Presser, chip *HDC1080, digits *Digits, log core.DebugWriter) *Script {
	if log == nil {
		log = func(string) {}
	}
	return &Script{presser: presser, chip: chip, digits: digits, log: log}
}

// newState opens only the side-effect free libraries.
func (s *Script) newState(ctx context.Context) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	L.SetContext(ctx)

	L.SetGlobal("press", L.NewFunction(s.press))
	L.SetGlobal("wait", L.NewFunction(s.wait))
	L.SetGlobal("set_temperature", L.NewFunction(s.setTemperature))
	L.SetGlobal("set_humidity", L.NewFunction(s.setHumidity))
	L.SetGlobal("display", L.NewFunction(s.display))
	L.SetGlobal("expect", L.NewFunction(s.expect))
	L.SetGlobal("log", L.NewFunction(s.logLine))
	return L
}

// Run executes source until it finishes, fails or ctx is done.
func (s *Script) Run(ctx context.Context, source string) error {
	L := s.newState(ctx)
	defer L.Close()
	return run(ctx, func() error { return L.DoString(source) })
}

// RunFile executes the scenario in path.
func (s *Script) RunFile(ctx context.Context, path string) error {
	L := s.newState(ctx)
	defer L.Close()
	return run(ctx, func() error { return L.DoFile(path) })
}

func run(ctx context.Context, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	err = fn()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Script) press(L *lua.LState) int {
	button := L.CheckInt(1)
	times := L.OptInt(2, 1)
	if times < 1 {
		L.ArgError(2, "times must be at least 1")
	}
	if err := s.presser.Press(L.Context(), button, times); err != nil {
		L.RaiseError("press(%d): %v", button, err)
	}
	return 0
}

func (s *Script) wait(L *lua.LState) int {
	ms := L.CheckInt(1)
	if err := core.Delay(L.Context(), time.Duration(ms)*time.Millisecond); err != nil {
		L.RaiseError("wait: %v", err)
	}
	return 0
}

func (s *Script) setTemperature(L *lua.LState) int {
	s.chip.SetTemperature(float64(L.CheckNumber(1)))
	return 0
}

func (s *Script) setHumidity(L *lua.LState) int {
	p := float64(L.CheckNumber(1))
	if p < 0 || p > 100 {
		L.ArgError(1, "humidity must be within 0..100")
	}
	s.chip.SetHumidity(p)
	return 0
}

func (s *Script) display(L *lua.LState) int {
	L.Push(lua.LString(s.digits.Text()))
	return 1
}

func (s *Script) expect(L *lua.LState) int {
	want := L.CheckString(1)
	timeout := time.Duration(L.OptInt(2, int(DefaultExpectTimeout/time.Millisecond))) * time.Millisecond

	deadline := time.Now().Add(timeout)
	for {
		got := s.digits.Text()
		if got == want {
			return 0
		}
		if time.Now().After(deadline) {
			L.RaiseError("expect %q: display shows %q after %v", want, got, timeout)
		}
		if err := core.Delay(L.Context(), time.Millisecond); err != nil {
			L.RaiseError("expect %q: %v", want, err)
		}
	}
}

func (s *Script) logLine(L *lua.LState) int {
	s.log("[SCRIPT] " + L.CheckString(1))
	return 0
}
