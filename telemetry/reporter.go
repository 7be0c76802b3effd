package telemetry

import (
	"context"
	"io"
	"time"

	"thermostep/control"
	"thermostep/core"
)

// Reporter watches the Control Queue and writes a snapshot line each
// time its head, its depth or the sensor halt changes. It only peeks, never consumes, and needs
// no semaphore.
type Reporter struct {
	bus      *control.Bus
	w        io.Writer
	interval time.Duration
	log      *core.Log
	start    time.Time

	seq  uint8
	last Snapshot
	sent bool

	Lines uint32
}

// NewReporter creates a reporter polling every interval.
func NewReporter(bus *control.Bus, w io.Writer, interval time.Duration, log *core.Log) *Reporter {
	return &Reporter{bus: bus, w: w, interval: interval, log: log, start: time.Now()}
}

// Run polls until ctx is done.
func (r *Reporter) Run(ctx context.Context) error {
	for {
		if err := r.Poll(); err != nil {
			r.log.Async("[CTRL] telemetry write failed: " + err.Error())
		}
		if err := core.Delay(ctx, r.interval); err != nil {
			return err
		}
	}
}

// Snapshot captures the current state without writing it.
func (r *Reporter) Snapshot() Snapshot {
	head, _ := r.bus.Control.TryPeek()
	return Snapshot{
		Seq:    r.seq,
		Head:   head,
		Depth:  r.bus.Control.Len(),
		Halted: r.bus.SensorHalt.Engaged(),
		Uptime: uint32(time.Since(r.start).Milliseconds()),
	}
}

// Poll writes a line if the head, depth or halt state changed since the
// last line. The first poll always writes.
func (r *Reporter) Poll() error {
	s := r.Snapshot()
	if r.sent && !changed(r.last, s) {
		return nil
	}
	r.last = s
	r.sent = true
	return r.Write(s)
}

// changed ignores Seq and Uptime, which differ on every poll.
func changed(a, b Snapshot) bool {
	return a.Head != b.Head || a.Depth != b.Depth || a.Halted != b.Halted
}

// Write encodes s and writes it as one line.
func (r *Reporter) Write(s Snapshot) error {
	var buf Buffer
	if err := Encode(&buf, s); err != nil {
		return err
	}
	r.seq = (r.seq + 1) & SeqMask
	if _, err := io.WriteString(r.w, FormatLine(buf.Bytes())+"\n"); err != nil {
		return err
	}
	r.Lines++
	return nil
}
