package control

import "thermostep/core"

// Default queue sizes.
const (
	DefaultOverflowThreshold = 10
	DefaultControlCapacity   = DefaultOverflowThreshold + 2
	DefaultRequestCapacity   = 2
)

// QueueSizes configures the Bus.
type QueueSizes struct {
	Control           int // Control Queue capacity
	OverflowThreshold int // depth above which the sensor task injects Overflow
	Requests          int // Display-Request, Motor-Request and Motor-Status capacity
}

// DefaultQueueSizes returns the board's queue sizes.
func DefaultQueueSizes() QueueSizes {
	return QueueSizes{
		Control:           DefaultControlCapacity,
		OverflowThreshold: DefaultOverflowThreshold,
		Requests:          DefaultRequestCapacity,
	}
}

// Bus owns every queue and semaphore the tasks share. It is built once
// by the controller and handed by pointer to each task.
type Bus struct {
	Control         *core.Queue[Message]
	DisplayRequests *core.Queue[DisplayRequest]
	MotorRequests   *core.Queue[MotorRequest]
	MotorStatus     *core.Queue[Status]

	// Ownership serializes the sensor and motor tasks over the Control
	// Queue and the motor coils.
	Ownership *core.Semaphore
	// Display serializes the two display tasks over the segment lines.
	Display *core.Semaphore

	// SensorHalt is engaged while the sensor task must stay parked
	// (emergency stop). The motor task releases it.
	SensorHalt *core.Latch

	OverflowThreshold int
}

// NewBus creates the queues and semaphores.
func NewBus(sizes QueueSizes) *Bus {
	if sizes.OverflowThreshold <= 0 {
		sizes.OverflowThreshold = DefaultOverflowThreshold
	}
	if sizes.Control < sizes.OverflowThreshold+2 {
		sizes.Control = sizes.OverflowThreshold + 2
	}
	if sizes.Requests <= 0 {
		sizes.Requests = DefaultRequestCapacity
	}

	return &Bus{
		Control:           core.NewQueue[Message]("control", sizes.Control),
		DisplayRequests:   core.NewQueue[DisplayRequest]("display-request", sizes.Requests),
		MotorRequests:     core.NewQueue[MotorRequest]("motor-request", sizes.Requests),
		MotorStatus:       core.NewQueue[Status]("motor-status", sizes.Requests),
		Ownership:         core.NewSemaphore("ownership"),
		Display:           core.NewSemaphore("display"),
		SensorHalt:        core.NewLatch(),
		OverflowThreshold: sizes.OverflowThreshold,
	}
}
