package control

import "thermostep/core"

// Kind tags the variant carried by a Message.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindReading
	KindMotorStatus
	KindOverflow
	KindEmergencyStop
)

func (k Kind) String() string {
	switch k {
	case KindReading:
		return "reading"
	case KindMotorStatus:
		return "motor-status"
	case KindOverflow:
		return "overflow"
	case KindEmergencyStop:
		return "emergency-stop"
	default:
		return "empty"
	}
}

// Quantity says which field of a reading's sample is displayed.
type Quantity uint8

const (
	Temperature Quantity = iota + 1
	Humidity
)

// Sample is one sensor poll. Temperature is kept in both scales: the
// display shows Fahrenheit, the motor follows Celsius.
type Sample struct {
	TempC    int
	TempF    int
	Humidity int
}

// Message is the element type of the Control Queue. Exactly one variant
// is meaningful, selected by Kind; consumers switch on Kind instead of
// guessing from numeric ranges.
type Message struct {
	Kind     Kind
	Quantity Quantity // KindReading only
	Sample   Sample   // KindReading only
	Status   Status   // KindMotorStatus only
}

// Reading builds a sensor reading message displaying q.
func Reading(q Quantity, s Sample) Message {
	return Message{Kind: KindReading, Quantity: q, Sample: s}
}

// MotorStatus builds a motor status message.
func MotorStatus(s Status) Message {
	return Message{Kind: KindMotorStatus, Status: s}
}

// Overflow builds the backpressure sentinel.
func Overflow() Message {
	return Message{Kind: KindOverflow}
}

// EmergencyStop builds the emergency-stop sentinel.
func EmergencyStop() Message {
	return Message{Kind: KindEmergencyStop}
}

// IsEmergencyStop reports whether m is the emergency-stop sentinel.
func IsEmergencyStop(m Message) bool {
	return m.Kind == KindEmergencyStop
}

// Value returns the displayed reading value, or 0 for other kinds.
func (m Message) Value() int {
	if m.Kind != KindReading {
		return 0
	}
	if m.Quantity == Humidity {
		return m.Sample.Humidity
	}
	return m.Sample.TempF
}

// Reserved reports whether m renders as a reserved code rather than as
// two decimal digits.
func (m Message) Reserved() bool {
	switch m.Kind {
	case KindMotorStatus, KindOverflow, KindEmergencyStop:
		return true
	}
	return false
}

// Code returns the numeric code the board shows and logs for m: the
// reading value, a status code (994-998), 993 for overflow, or 999 for
// emergency stop. Empty messages return -1.
func (m Message) Code() int {
	switch m.Kind {
	case KindReading:
		return m.Value()
	case KindMotorStatus:
		return int(m.Status)
	case KindOverflow:
		return CodeOverflow
	case KindEmergencyStop:
		return CodeEmergencyStop
	default:
		return -1
	}
}

func (m Message) String() string {
	switch m.Kind {
	case KindReading:
		q := "temperature"
		if m.Quantity == Humidity {
			q = "humidity"
		}
		return "reading " + q + "=" + core.Itoa(m.Value())
	case KindMotorStatus:
		return "status " + m.Status.String()
	default:
		return m.Kind.String()
	}
}
