// Package control defines what flows between the tasks: request codes
// from the buttons, motor status codes, and the tagged message carried
// on the Control Queue.
package control

import "thermostep/core"

// MotorRequest is posted by the button task to the Motor-Request Queue.
// The numeric values are the codes the board logs.
type MotorRequest uint8

const (
	MoveOnTemperature MotorRequest = 11
	MoveOnHumidity    MotorRequest = 12
	StopEmergency     MotorRequest = 13
	RotateCW          MotorRequest = 21
	RotateCCW         MotorRequest = 22
	FullRotation      MotorRequest = 23
)

func (r MotorRequest) String() string {
	switch r {
	case MoveOnTemperature:
		return "move-on-temperature"
	case MoveOnHumidity:
		return "move-on-humidity"
	case StopEmergency:
		return "emergency-stop"
	case RotateCW:
		return "rotate-cw"
	case RotateCCW:
		return "rotate-ccw"
	case FullRotation:
		return "full-rotation"
	default:
		return "motor-request(" + core.Itoa(int(r)) + ")"
	}
}

// DisplayRequest is posted by the button task to the Display-Request
// Queue and selects what the sensor task relays to the displays.
type DisplayRequest uint8

const (
	DisplayNone        DisplayRequest = 0
	DisplayTemperature DisplayRequest = 31
	DisplayHumidity    DisplayRequest = 32
	DisplayMotorStatus DisplayRequest = 33
)

func (r DisplayRequest) String() string {
	switch r {
	case DisplayNone:
		return "none"
	case DisplayTemperature:
		return "temperature"
	case DisplayHumidity:
		return "humidity"
	case DisplayMotorStatus:
		return "motor-status"
	default:
		return "display-request(" + core.Itoa(int(r)) + ")"
	}
}

// Status is a motor status code, emitted by the motor task just before
// a motion starts.
type Status int

const (
	StatusNone           Status = 0
	StatusMoveOnTemp     Status = 994
	StatusMoveOnHumidity Status = 995
	StatusRotateCW       Status = 996
	StatusRotateCCW      Status = 997
	StatusFullRotation   Status = 998 // also posted when resuming after an emergency stop
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusMoveOnTemp:
		return "move-on-temp"
	case StatusMoveOnHumidity:
		return "move-on-humidity"
	case StatusRotateCW:
		return "full-cw"
	case StatusRotateCCW:
		return "full-ccw"
	case StatusFullRotation:
		return "full-rotation-test"
	default:
		return "status(" + core.Itoa(int(s)) + ")"
	}
}

// Reserved numeric codes shown on the display.
const (
	ReservedCodeMin   = 992 // codes at or above this are never digit-decoded
	CodeOverflow      = 993
	CodeEmergencyStop = 999
)
