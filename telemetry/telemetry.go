// Package telemetry streams status snapshots from the board to a host.
//
// A snapshot is VLQ-encoded into a small CRC-checked frame and written
// to the console as one text line, "#T " followed by the frame in hex,
// so it can share the USB serial console with ordinary log output.
package telemetry

import "thermostep/control"

// Frame constants
const (
	FrameMax     = 64 // largest frame, header and trailer included
	FrameHeader  = 2  // length, sequence
	FrameTrailer = 3  // crc16 (big-endian), sync
	FrameMin     = FrameHeader + FrameTrailer

	FramePositionLen = 0
	FramePositionSeq = 1

	SyncByte = 0x7E
	SeqDest  = 0x10 // high nibble of every sequence byte
	SeqMask  = 0x0F

	LinePrefix = "#T "
)

// Snapshot is what the host sees of the system at one instant.
type Snapshot struct {
	Seq    uint8           // 0..15, wraps
	Head   control.Message // head of the Control Queue (KindEmpty if none)
	Depth  int             // Control Queue length
	Halted bool            // sensor task parked
	Uptime uint32          // milliseconds since start
}

// Code is the value the displays are showing, or -1 when blank.
func (s Snapshot) Code() int {
	return s.Head.Code()
}
