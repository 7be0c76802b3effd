package telemetry

import (
	"encoding/hex"
	"errors"
	"strings"

	"thermostep/control"
)

var (
	ErrFrameLength  = errors.New("telemetry: bad frame length")
	ErrFrameSeq     = errors.New("telemetry: bad sequence byte")
	ErrFrameSync    = errors.New("telemetry: missing sync byte")
	ErrFrameCRC     = errors.New("telemetry: crc mismatch")
	ErrNotTelemetry = errors.New("telemetry: not a telemetry line")
)

// Buffer is a fixed-size Output holding one frame.
type Buffer struct {
	buf  [FrameMax]byte
	pos  int
	full bool
}

func (b *Buffer) Output(data []byte) {
	n := copy(b.buf[b.pos:], data)
	b.pos += n
	if n < len(data) {
		b.full = true
	}
}

func (b *Buffer) CurPosition() int {
	return b.pos
}

func (b *Buffer) Update(pos int, val byte) {
	if pos < len(b.buf) {
		b.buf[pos] = val
	}
}

func (b *Buffer) DataSince(pos int) []byte {
	if pos > b.pos {
		return nil
	}
	return b.buf[pos:b.pos]
}

// Bytes returns what has been written.
func (b *Buffer) Bytes() []byte {
	return b.buf[:b.pos]
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.pos = 0
	b.full = false
}

// EncodeFrame wraps the payload written by body in a frame:
// length, sequence, payload, crc16, sync.
func EncodeFrame(out *Buffer, seq uint8, body func(Output)) error {
	start := out.CurPosition()
	out.Output([]byte{0, seq&SeqMask | SeqDest})
	body(out)

	n := len(out.DataSince(start))
	out.Update(start, uint8(n+FrameTrailer))

	crc := CRC16(out.DataSince(start))
	out.Output([]byte{byte(crc >> 8), byte(crc), SyncByte})
	if out.full {
		return ErrOverflow
	}
	return nil
}

// Encode writes s as one frame into out.
func Encode(out *Buffer, s Snapshot) error {
	return EncodeFrame(out, s.Seq, func(o Output) {
		m := s.Head
		PutUint(o, uint32(m.Kind))
		PutUint(o, uint32(m.Quantity))
		PutInt(o, int32(m.Sample.TempC))
		PutInt(o, int32(m.Sample.TempF))
		PutInt(o, int32(m.Sample.Humidity))
		PutUint(o, uint32(m.Status))
		PutUint(o, uint32(s.Depth))
		PutBool(o, s.Halted)
		PutUint(o, s.Uptime)
	})
}

// checkFrame validates the frame at the start of data and returns its
// length.
func checkFrame(data []byte) (int, error) {
	if len(data) < FrameMin {
		return 0, ErrFrameLength
	}
	n := int(data[FramePositionLen])
	if n < FrameMin || n > FrameMax || n > len(data) {
		return 0, ErrFrameLength
	}
	if data[FramePositionSeq]&^SeqMask != SeqDest {
		return 0, ErrFrameSeq
	}
	if data[n-1] != SyncByte {
		return 0, ErrFrameSync
	}
	got := uint16(data[n-FrameTrailer])<<8 | uint16(data[n-FrameTrailer+1])
	if got != CRC16(data[:n-FrameTrailer]) {
		return 0, ErrFrameCRC
	}
	return n, nil
}

// DecodeFrame decodes one complete frame.
func DecodeFrame(frame []byte) (Snapshot, error) {
	n, err := checkFrame(frame)
	if err != nil {
		return Snapshot{}, err
	}
	return decodePayload(frame[FramePositionSeq]&SeqMask, frame[FrameHeader:n-FrameTrailer])
}

func decodePayload(seq uint8, p []byte) (Snapshot, error) {
	var f [9]int32
	for i := range f {
		v, err := Int(&p)
		if err != nil {
			return Snapshot{}, err
		}
		f[i] = v
	}
	return Snapshot{
		Seq: seq,
		Head: control.Message{
			Kind:     control.Kind(f[0]),
			Quantity: control.Quantity(f[1]),
			Sample: control.Sample{
				TempC:    int(f[2]),
				TempF:    int(f[3]),
				Humidity: int(f[4]),
			},
			Status: control.Status(f[5]),
		},
		Depth:  int(f[6]),
		Halted: f[7] != 0,
		Uptime: uint32(f[8]),
	}, nil
}

// FormatLine renders a frame as a console line, without newline.
func FormatLine(frame []byte) string {
	return LinePrefix + strings.ToUpper(hex.EncodeToString(frame))
}

// ParseLine decodes a console line written by FormatLine. Lines without
// the prefix return ErrNotTelemetry.
func ParseLine(line string) (Snapshot, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, LinePrefix) {
		return Snapshot{}, ErrNotTelemetry
	}
	frame, err := hex.DecodeString(strings.TrimSpace(line[len(LinePrefix):]))
	if err != nil {
		return Snapshot{}, err
	}
	return DecodeFrame(frame)
}

// Decoder reassembles frames from a raw byte stream. Bytes that do not
// start a valid frame are skipped up to the next sync byte.
type Decoder struct {
	pending []byte
	Errors  uint32 // frames discarded
}

// Feed appends data and returns every snapshot completed by it.
func (d *Decoder) Feed(data []byte) []Snapshot {
	d.pending = append(d.pending, data...)
	var out []Snapshot

	for len(d.pending) > 0 {
		if d.pending[0] == SyncByte {
			d.pending = d.pending[1:]
			continue
		}
		if len(d.pending) < FrameMin {
			break
		}
		n := int(d.pending[FramePositionLen])
		if n >= FrameMin && n <= FrameMax && len(d.pending) < n {
			// wait for the rest
			break
		}

		if _, err := checkFrame(d.pending); err != nil {
			d.Errors++
			d.resync()
			continue
		}
		s, err := DecodeFrame(d.pending[:n])
		d.pending = d.pending[n:]
		if err != nil {
			d.Errors++
			continue
		}
		out = append(out, s)
	}

	if len(d.pending) == 0 {
		d.pending = nil
	}
	return out
}

// resync drops bytes up to and including the next sync byte.
func (d *Decoder) resync() {
	for i, b := range d.pending {
		if b == SyncByte {
			d.pending = d.pending[i+1:]
			return
		}
	}
	d.pending = nil
}
