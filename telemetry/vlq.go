package telemetry

import "errors"

var (
	ErrTruncated = errors.New("telemetry: truncated VLQ")
	ErrOverflow  = errors.New("telemetry: frame buffer full")
)

// Output is the sink the encoders write to.
type Output interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// PutInt writes v as a variable-length quantity: seven bits per byte,
// most significant group first, continuation in bit 7. Values in
// [-32, 96) take one byte; the sign is carried by bits 5 and 6 of the
// first byte.
func PutInt(out Output, v int32) {
	var buf [5]byte
	n := 0
	if v < -(1<<26) || v >= 3<<26 {
		buf[n] = byte(v>>28)&0x7F | 0x80
		n++
	}
	if v < -(1<<19) || v >= 3<<19 {
		buf[n] = byte(v>>21)&0x7F | 0x80
		n++
	}
	if v < -(1<<12) || v >= 3<<12 {
		buf[n] = byte(v>>14)&0x7F | 0x80
		n++
	}
	if v < -(1<<5) || v >= 3<<5 {
		buf[n] = byte(v>>7)&0x7F | 0x80
		n++
	}
	buf[n] = byte(v) & 0x7F
	out.Output(buf[:n+1])
}

// PutUint writes v with the same encoding as PutInt.
func PutUint(out Output, v uint32) {
	PutInt(out, int32(v))
}

// PutBool writes b as 0 or 1.
func PutBool(out Output, b bool) {
	if b {
		PutInt(out, 1)
		return
	}
	PutInt(out, 0)
}

// Int reads one VLQ from the front of *data and advances it.
func Int(data *[]byte) (int32, error) {
	if len(*data) == 0 {
		return 0, ErrTruncated
	}
	c := uint32((*data)[0])
	*data = (*data)[1:]

	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	for c&0x80 != 0 {
		if len(*data) == 0 {
			return 0, ErrTruncated
		}
		c = uint32((*data)[0])
		*data = (*data)[1:]
		v = v<<7 | c&0x7F
	}
	return int32(v), nil
}

// Uint reads one VLQ as unsigned.
func Uint(data *[]byte) (uint32, error) {
	v, err := Int(data)
	return uint32(v), err
}
