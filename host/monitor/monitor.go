// Package monitor follows the board's console on the host: debug lines
// pass through, telemetry lines are decoded and printed as text or as
// one JSON object per line.
package monitor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"thermostep/control"
	"thermostep/telemetry"
)

// Format selects the output encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat accepts "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown format %q", s)
}

// Stats counts what the monitor has seen.
type Stats struct {
	Lines     uint32
	Snapshots uint32
	BadFrames uint32
	Missed    uint32 // snapshots lost, from sequence gaps
}

// Monitor decodes one console stream.
type Monitor struct {
	r      io.Reader
	w      io.Writer
	format Format

	// Session tags every JSON record from this run.
	Session string
	// Follow keeps reading after io.EOF, which is how a serial port
	// with a read timeout reports silence.
	Follow bool
	// Quiet drops debug lines.
	Quiet bool

	last    telemetry.Snapshot
	hasLast bool

	Stats Stats
}

// New creates a monitor reading r and writing to w.
func New(r io.Reader, w io.Writer, format Format) *Monitor {
	return &Monitor{r: r, w: w, format: format, Session: uuid.NewString()}
}

// Run reads lines until the stream ends or ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	br := bufio.NewReader(m.r)
	var partial strings.Builder

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := br.ReadString('\n')
		partial.WriteString(chunk)

		switch {
		case err == nil:
			line := partial.String()
			partial.Reset()
			if werr := m.HandleLine(line); werr != nil {
				return werr
			}
		case errors.Is(err, io.EOF) && m.Follow:
			if chunk == "" {
				select {
				case <-ctx.Done():
				case <-time.After(10 * time.Millisecond):
				}
			}
		case errors.Is(err, io.EOF):
			if partial.Len() > 0 {
				return m.HandleLine(partial.String())
			}
			return nil
		default:
			return err
		}
	}
}

// HandleLine processes one console line.
func (m *Monitor) HandleLine(line string) error {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil
	}
	m.Stats.Lines++

	s, err := telemetry.ParseLine(line)
	switch {
	case errors.Is(err, telemetry.ErrNotTelemetry):
		if m.Quiet {
			return nil
		}
		return m.emitLog(line)
	case err != nil:
		m.Stats.BadFrames++
		return m.emitLog("bad telemetry frame: " + err.Error())
	}

	m.Stats.Snapshots++
	if m.hasLast {
		m.Stats.Missed += uint32((s.Seq - m.last.Seq - 1) & telemetry.SeqMask)
	}
	m.last, m.hasLast = s, true
	return m.emitSnapshot(s)
}

// Last returns the most recent snapshot.
func (m *Monitor) Last() (telemetry.Snapshot, bool) {
	return m.last, m.hasLast
}

func (m *Monitor) emitLog(line string) error {
	if m.format == FormatText {
		_, err := fmt.Fprintln(m.w, line)
		return err
	}
	doc, err := sjson.SetBytes([]byte(`{}`), "session", m.Session)
	if err == nil {
		doc, err = sjson.SetBytes(doc, "type", "log")
	}
	if err == nil {
		doc, err = sjson.SetBytes(doc, "line", line)
	}
	if err != nil {
		return err
	}
	_, err = m.w.Write(append(doc, '\n'))
	return err
}

func (m *Monitor) emitSnapshot(s telemetry.Snapshot) error {
	if m.format == FormatText {
		state := ""
		if s.Halted {
			state = " HALTED"
		}
		_, err := fmt.Fprintf(m.w, "[%8dms] #%-2d %-28s code=%-4d depth=%d%s\n",
			s.Uptime, s.Seq, s.Head.String(), s.Code(), s.Depth, state)
		return err
	}

	doc, err := SnapshotJSON(m.Session, s)
	if err != nil {
		return err
	}
	_, err = m.w.Write(append(doc, '\n'))
	return err
}

type field struct {
	path  string
	value any
}

// SnapshotJSON encodes s as one JSON object.
func SnapshotJSON(session string, s telemetry.Snapshot) ([]byte, error) {
	fields := []field{
		{"session", session},
		{"type", "snapshot"},
		{"seq", s.Seq},
		{"uptime_ms", s.Uptime},
		{"depth", s.Depth},
		{"halted", s.Halted},
		{"head.kind", s.Head.Kind.String()},
		{"head.code", s.Code()},
	}
	switch s.Head.Kind {
	case control.KindReading:
		q := "temperature"
		if s.Head.Quantity == control.Humidity {
			q = "humidity"
		}
		fields = append(fields,
			field{"head.quantity", q},
			field{"head.sample.temp_c", s.Head.Sample.TempC},
			field{"head.sample.temp_f", s.Head.Sample.TempF},
			field{"head.sample.humidity", s.Head.Sample.Humidity},
		)
	case control.KindMotorStatus:
		fields = append(fields, field{"head.status", s.Head.Status.String()})
	}

	doc := []byte(`{}`)
	var err error
	for _, f := range fields {
		if doc, err = sjson.SetBytes(doc, f.path, f.value); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
