package core

import "sync"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TaskID identifies a task in the coordination event ring
type TaskID uint8

const (
	TaskNone TaskID = iota
	TaskSensor
	TaskButton
	TaskMotor
	TaskDisplayLeft
	TaskDisplayRight
	TaskController
)

// String returns the task name used in log lines
func (t TaskID) String() string {
	switch t {
	case TaskSensor:
		return "sensor"
	case TaskButton:
		return "button"
	case TaskMotor:
		return "motor"
	case TaskDisplayLeft:
		return "display-left"
	case TaskDisplayRight:
		return "display-right"
	case TaskController:
		return "controller"
	default:
		return "none"
	}
}

// EventKind classifies a coordination event
type EventKind uint8

// Event kind codes
const (
	EvtTake      EventKind = 1 // ownership semaphore taken
	EvtGive      EventKind = 2 // ownership semaphore given
	EvtSend      EventKind = 3 // message queued
	EvtDrop      EventKind = 4 // message dropped (queue full)
	EvtOverflow  EventKind = 5 // overflow sentinel injected
	EvtEmergency EventKind = 6 // emergency stop posted
	EvtPark      EventKind = 7 // task parked on a latch
	EvtResume    EventKind = 8 // latch released
	EvtBusError  EventKind = 9 // sensor bus failure
)

// Event captures a coordination event for post-mortem analysis
type Event struct {
	Kind  EventKind
	Task  TaskID
	Seq   uint32 // monotonic sequence number
	Value int32  // context-dependent value
}

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

// Log is the debug sink shared by the tasks of one system. It is built
// once at startup and passed to each task; nothing here is global.
//
// A nil *Log discards everything, which keeps tests that do not care
// about output short.
type Log struct {
	mu      sync.Mutex
	write   DebugWriter
	enabled bool

	// Async debug output channel
	ch   chan string
	done chan struct{}

	// Coordination ring buffer (non-blocking, for post-mortem)
	ring     [EventRingSize]Event
	ringHead uint8
	seq      uint32
}

// NewLog returns an enabled log writing through w. A nil w discards output.
func NewLog(w DebugWriter) *Log {
	if w == nil {
		w = func(string) {}
	}
	return &Log{write: w, enabled: true}
}

// SetEnabled enables or disables debug output. The event ring keeps
// recording either way.
func (l *Log) SetEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.enabled = enabled
	l.mu.Unlock()
}

// Enabled reports whether debug output is active
func (l *Log) Enabled() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Println writes a message synchronously
func (l *Log) Println(msg string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	enabled, w := l.enabled, l.write
	l.mu.Unlock()
	if enabled {
		w(msg)
	}
}

// StartAsync starts the worker that drains Async messages.
// Call once, after the writer is configured.
func (l *Log) StartAsync(buffer int) {
	if l == nil || l.ch != nil {
		return
	}
	l.ch = make(chan string, buffer)
	l.done = make(chan struct{})
	go l.worker()
}

func (l *Log) worker() {
	defer close(l.done)
	for msg := range l.ch {
		l.Println(msg)
	}
}

// Async queues a message for the worker. Returns immediately even if
// the channel is full (drops message). Falls back to Println when the
// worker was never started.
func (l *Log) Async(msg string) {
	if l == nil {
		return
	}
	if l.ch == nil {
		l.Println(msg)
		return
	}
	select {
	case l.ch <- msg:
	default:
	}
}

// Close stops the async worker after it has drained pending messages.
func (l *Log) Close() {
	if l == nil || l.ch == nil {
		return
	}
	close(l.ch)
	<-l.done
	l.ch = nil
}

// Record captures a coordination event in the ring buffer
func (l *Log) Record(kind EventKind, task TaskID, value int32) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	idx := l.ringHead
	l.ring[idx] = Event{Kind: kind, Task: task, Seq: l.seq, Value: value}
	l.ringHead = (idx + 1) % EventRingSize
}

// Events returns the recorded events, oldest first
func (l *Log) Events() []Event {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0, EventRingSize)
	start := l.ringHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := l.ring[(start+i)%EventRingSize]
		if evt.Kind == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// DumpEvents writes the event ring through the writer (call on shutdown/error)
func (l *Log) DumpEvents() {
	if l == nil {
		return
	}
	events := l.Events()

	l.Println("[EVENTS] === Coordination Ring Dump ===")
	for _, evt := range events {
		var name string
		switch evt.Kind {
		case EvtTake:
			name = "TAKE"
		case EvtGive:
			name = "GIVE"
		case EvtSend:
			name = "SEND"
		case EvtDrop:
			name = "DROP"
		case EvtOverflow:
			name = "OVERFLOW!"
		case EvtEmergency:
			name = "ESTOP!"
		case EvtPark:
			name = "PARK"
		case EvtResume:
			name = "RESUME"
		case EvtBusError:
			name = "BUS_ERR"
		default:
			name = "UNKNOWN"
		}

		l.Println("[EVENTS] " + name +
			" task=" + evt.Task.String() +
			" seq=" + Utoa(evt.Seq) +
			" v=" + Itoa(int(evt.Value)))
	}
	l.Println("[EVENTS] === End Dump ===")
}

// ClearEvents clears the event ring
func (l *Log) ClearEvents() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.ring {
		l.ring[i] = Event{}
	}
	l.ringHead = 0
}
