// ABOUTME: Wire codec for the framed TCP message protocol
// ABOUTME: Serializes/deserializes typed headers and bodies to/from a byte stream
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/Resonate-Protocol/resonate-go/internal/errs"
)

// Type identifies a message kind on the wire. The numbering matches
// the reference server implementation; unknown values must be
// skipped, not treated as fatal.
type Type uint16

const (
	TypeBase Type = iota
	TypeCodecHeader
	TypeWireChunk
	TypeServerSettings
	TypeTime
	TypeHello
	TypeStreamTags
)

func (t Type) String() string {
	switch t {
	case TypeBase:
		return "Base"
	case TypeCodecHeader:
		return "CodecHeader"
	case TypeWireChunk:
		return "WireChunk"
	case TypeServerSettings:
		return "ServerSettings"
	case TypeTime:
		return "Time"
	case TypeHello:
		return "Hello"
	case TypeStreamTags:
		return "StreamTags"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(t))
	}
}

// TV is a POSIX-style timestamp pair, a duration since the Unix epoch
// on the sender's clock.
type TV struct {
	Sec  int32
	Usec int32
}

// Now returns the current local time as a TV.
func Now() TV {
	return FromTime(time.Now())
}

// FromTime converts a time.Time to a TV.
func FromTime(t time.Time) TV {
	usec := t.UnixMicro()
	return TV{Sec: int32(usec / 1_000_000), Usec: int32(usec % 1_000_000)}
}

// Time converts a TV back to a time.Time (UTC).
func (t TV) Time() time.Time {
	return time.UnixMicro(int64(t.Sec)*1_000_000 + int64(t.Usec)).UTC()
}

// Sub returns t - o as a time.Duration.
func (t TV) Sub(o TV) time.Duration {
	return t.Time().Sub(o.Time())
}

// HeaderSize is the fixed on-wire size of a Header, in bytes.
const HeaderSize = 26

// Header is the fixed BaseMessage header preceding every message body.
type Header struct {
	Type     Type
	ID       uint16
	RefersTo uint16
	Sent     TV
	Received TV
	Size     uint32
}

// MarshalBinary encodes the header in the wire field order:
// type, id, refersTo, sent.sec, sent.usec, received.sec, received.usec, size.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(h.Type))
	binary.LittleEndian.PutUint16(buf[2:4], h.ID)
	binary.LittleEndian.PutUint16(buf[4:6], h.RefersTo)
	binary.LittleEndian.PutUint32(buf[6:10], uint32(h.Sent.Sec))
	binary.LittleEndian.PutUint32(buf[10:14], uint32(h.Sent.Usec))
	binary.LittleEndian.PutUint32(buf[14:18], uint32(h.Received.Sec))
	binary.LittleEndian.PutUint32(buf[18:22], uint32(h.Received.Usec))
	binary.LittleEndian.PutUint32(buf[22:26], h.Size)
	return buf, nil
}

// UnmarshalBinary decodes a header from exactly HeaderSize bytes.
func (h *Header) UnmarshalBinary(buf []byte) error {
	if len(buf) != HeaderSize {
		return fmt.Errorf("wire: header must be %d bytes, got %d", HeaderSize, len(buf))
	}
	h.Type = Type(binary.LittleEndian.Uint16(buf[0:2]))
	h.ID = binary.LittleEndian.Uint16(buf[2:4])
	h.RefersTo = binary.LittleEndian.Uint16(buf[4:6])
	h.Sent.Sec = int32(binary.LittleEndian.Uint32(buf[6:10]))
	h.Sent.Usec = int32(binary.LittleEndian.Uint32(buf[10:14]))
	h.Received.Sec = int32(binary.LittleEndian.Uint32(buf[14:18]))
	h.Received.Usec = int32(binary.LittleEndian.Uint32(buf[18:22]))
	h.Size = binary.LittleEndian.Uint32(buf[22:26])
	return nil
}

// WriteString writes a length-prefixed UTF-8 string: u32 length, then raw bytes.
func WriteString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadString reads a length-prefixed UTF-8 string.
func ReadString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if uint32(r.Len()) < n {
		return "", fmt.Errorf("%w: string length %d exceeds remaining body", errs.Protocol, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteBytes writes a u32-length-prefixed opaque byte blob.
func WriteBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadBytes reads a u32-length-prefixed opaque byte blob.
func ReadBytes(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if uint32(r.Len()) < n {
		return nil, fmt.Errorf("%w: payload length %d exceeds remaining body", errs.Protocol, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
