package sim

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
)

// Panel layout
const (
	digitWidth  = 7
	digitTop    = 2
	digitLeft   = 2
	conditionsY = 8
	statusY     = 9
	legendY     = 11
)

const legend = "1-3 press button  +/- temperature  [ ] humidity  q quit"

// Panel renders the board on a terminal and turns key strokes into
// button presses and sensor changes.
type Panel struct {
	screen  tcell.Screen
	digits  *Digits
	presser *Presser
	chip    *HDC1080

	lit   tcell.Style
	plain tcell.Style

	mu      sync.Mutex
	status  string
	pressMu sync.Mutex
	pending sync.WaitGroup
}

// NewPanel creates a panel on an initialized screen.
func NewPanel(screen tcell.Screen, digits *Digits, presser *Presser, chip *HDC1080) *Panel {
	return &Panel{
		screen:  screen,
		digits:  digits,
		presser: presser,
		chip:    chip,
		lit:     tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
		plain:   tcell.StyleDefault,
	}
}

// SetStatus replaces the status line.
func (p *Panel) SetStatus(s string) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// Draw renders one frame.
func (p *Panel) Draw() {
	p.screen.Clear()
	p.text(0, 0, "thermostep", p.plain.Bold(true))

	l, r := p.digits.Patterns()
	p.segments(digitLeft, digitTop, l)
	p.segments(digitLeft+digitWidth, digitTop, r)

	c, h := p.chip.Conditions()
	p.text(0, conditionsY, strconv.FormatFloat(c, 'f', 1, 64)+" C  "+
		strconv.FormatFloat(h, 'f', 1, 64)+" %RH", p.plain)

	p.mu.Lock()
	status := p.status
	p.mu.Unlock()
	p.text(0, statusY, status, p.plain)
	p.text(0, legendY, legend, p.plain)

	p.screen.Show()
}

// segments draws one digit, 6 columns by 5 rows, bit 0 = a.
func (p *Panel) segments(x, y int, pat uint8) {
	on := func(seg uint) bool { return pat&(1<<seg) != 0 }
	horizontal := func(row int, seg uint) {
		if on(seg) {
			p.text(x+1, row, "---", p.lit)
		}
	}
	vertical := func(col, row int, seg uint) {
		if on(seg) {
			p.screen.SetContent(col, row, '|', nil, p.lit)
		}
	}

	horizontal(y, 0)
	vertical(x, y+1, 5)
	vertical(x+4, y+1, 1)
	horizontal(y+2, 6)
	vertical(x, y+3, 4)
	vertical(x+4, y+3, 2)
	horizontal(y+4, 3)
	if on(7) {
		p.screen.SetContent(x+5, y+4, '.', nil, p.lit)
	}
}

func (p *Panel) text(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		p.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

// HandleEvent applies one terminal event. It returns false when the
// operator asked to quit. Button presses run in the background, one at
// a time.
func (p *Panel) HandleEvent(ctx context.Context, ev tcell.Event) bool {
	key, ok := ev.(*tcell.EventKey)
	if !ok {
		if _, resized := ev.(*tcell.EventResize); resized {
			p.screen.Sync()
		}
		return true
	}

	switch key.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyRune:
	default:
		return true
	}

	c, h := p.chip.Conditions()
	switch r := key.Rune(); r {
	case 'q':
		return false
	case '1', '2', '3':
		p.press(ctx, int(r-'0'))
	case '+':
		p.chip.SetTemperature(c + 1)
	case '-':
		p.chip.SetTemperature(c - 1)
	case ']':
		p.chip.SetHumidity(min(h+1, 100))
	case '[':
		p.chip.SetHumidity(max(h-1, 0))
	}
	return true
}

func (p *Panel) press(ctx context.Context, button int) {
	p.SetStatus("button" + strconv.Itoa(button) + " pressed")
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		p.pressMu.Lock()
		defer p.pressMu.Unlock()
		_ = p.presser.Press(ctx, button, 1)
	}()
}

// Wait blocks until every queued press has been released.
func (p *Panel) Wait() {
	p.pending.Wait()
}

// Run redraws every refresh and handles events until ctx is done or
// the operator quits. The caller owns the screen and calls Fini.
func (p *Panel) Run(ctx context.Context, refresh time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tcell.Event)
	go func() {
		for {
			ev := p.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	tick := time.NewTicker(refresh)
	defer tick.Stop()

	p.Draw()
	for {
		select {
		case <-ctx.Done():
			p.Wait()
			return ctx.Err()
		case ev := <-events:
			if !p.HandleEvent(ctx, ev) {
				p.Wait()
				return nil
			}
			p.Draw()
		case <-tick.C:
			p.Draw()
		}
	}
}
