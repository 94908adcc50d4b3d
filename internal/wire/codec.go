package wire

import (
	"fmt"
	"io"
)

// Frame is a fully decoded message: its header and raw body bytes.
type Frame struct {
	Header Header
	Body   []byte
}

// NewHeader builds a header with Sent stamped to now, ready for
// serialization. Received is left zero; the reader stamps it on
// arrival.
func NewHeader(typ Type, id, refersTo uint16, bodyLen int) Header {
	return Header{
		Type:     typ,
		ID:       id,
		RefersTo: refersTo,
		Sent:     Now(),
		Size:     uint32(bodyLen),
	}
}

// WriteFrame writes a header immediately followed by its body to w.
// Callers are responsible for serializing writes across one
// connection (the wire codec itself does no locking).
func WriteFrame(w io.Writer, h Header, body []byte) error {
	h.Size = uint32(len(body))
	hb, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.Write(hb); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame reads exactly one header followed by its body from r. It
// stamps Received immediately after the header bytes arrive, per
// spec.md §4.A.
func ReadFrame(r io.Reader) (Frame, error) {
	hb := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hb); err != nil {
		return Frame{}, err
	}
	var h Header
	if err := h.UnmarshalBinary(hb); err != nil {
		return Frame{}, err
	}
	h.Received = Now()

	if h.Size > maxBodySize {
		return Frame{}, fmt.Errorf("wire: body size %d exceeds maximum %d", h.Size, maxBodySize)
	}

	body := make([]byte, h.Size)
	if h.Size > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Header: h, Body: body}, nil
}

// maxBodySize bounds a single message body to guard against a
// corrupted or malicious size field stalling the reader on an
// unbounded allocation.
const maxBodySize = 64 << 20
