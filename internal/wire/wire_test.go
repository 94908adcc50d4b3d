package wire

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Type:     TypeHello,
		ID:       7,
		RefersTo: 3,
		Sent:     TV{Sec: 100, Usec: 200},
		Received: TV{Sec: 101, Usec: 300},
		Size:     42,
	}
	buf, err := h.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(buf) != HeaderSize {
		t.Fatalf("expected %d bytes, got %d", HeaderSize, len(buf))
	}

	var got Header
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestFramingBackToBack(t *testing.T) {
	var buf bytes.Buffer

	h1 := NewHeader(TypeHello, 1, 0, 0)
	body1, err := EncodeJSON(HelloPayload{MAC: "aa:bb:cc:dd:ee:ff", Instance: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteFrame(&buf, h1, body1); err != nil {
		t.Fatal(err)
	}

	h2 := NewHeader(TypeTime, 2, 1, 0)
	body2 := EncodeTime(TimePayload{Latency: TV{Sec: 1, Usec: 500}})
	if err := WriteFrame(&buf, h2, body2); err != nil {
		t.Fatal(err)
	}

	f1, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("read first frame: %v", err)
	}
	if f1.Header.Type != TypeHello || f1.Header.ID != 1 {
		t.Fatalf("unexpected first frame header: %+v", f1.Header)
	}
	var hello HelloPayload
	if err := DecodeJSON(f1.Body, &hello); err != nil {
		t.Fatalf("decode hello: %v", err)
	}
	if hello.MAC != "aa:bb:cc:dd:ee:ff" || hello.Instance != 1 {
		t.Fatalf("unexpected hello payload: %+v", hello)
	}

	f2, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("read second frame: %v", err)
	}
	if f2.Header.Type != TypeTime || f2.Header.ID != 2 || f2.Header.RefersTo != 1 {
		t.Fatalf("unexpected second frame header: %+v", f2.Header)
	}
	tp, err := DecodeTime(f2.Body)
	if err != nil {
		t.Fatalf("decode time: %v", err)
	}
	if tp.Latency != (TV{Sec: 1, Usec: 500}) {
		t.Fatalf("unexpected time payload: %+v", tp)
	}
}

func TestWireChunkRoundTrip(t *testing.T) {
	p := WireChunkPayload{
		Timestamp: TV{Sec: 10, Usec: 20},
		Payload:   []byte{1, 2, 3, 4, 5},
	}
	body, err := EncodeWireChunk(p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeWireChunk(body)
	if err != nil {
		t.Fatal(err)
	}
	if got.Timestamp != p.Timestamp || !bytes.Equal(got.Payload, p.Payload) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, p)
	}
}

func TestCodecHeaderRoundTrip(t *testing.T) {
	p := CodecHeaderPayload{Codec: "flac", Payload: []byte("fLaC-init-bytes")}
	body, err := EncodeCodecHeader(p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeCodecHeader(body)
	if err != nil {
		t.Fatal(err)
	}
	if got.Codec != p.Codec || !bytes.Equal(got.Payload, p.Payload) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, p)
	}
}

func TestServerSettingsRoundTrip(t *testing.T) {
	p := ServerSettingsPayload{BufferMs: 1000, Latency: 20, Volume: 80, Muted: false}
	body, err := EncodeJSON(p)
	if err != nil {
		t.Fatal(err)
	}
	var got ServerSettingsPayload
	if err := DecodeJSON(body, &got); err != nil {
		t.Fatal(err)
	}
	if got != p {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, p)
	}
}

func TestUnknownTypeIsSkippable(t *testing.T) {
	var buf bytes.Buffer
	unknownBody := []byte("unrecognized-future-body")
	h := NewHeader(Type(999), 5, 0, 0)
	if err := WriteFrame(&buf, h, unknownBody); err != nil {
		t.Fatal(err)
	}
	// A follow-up well-known message must still be recoverable: framing
	// is length-prefixed, so an unknown type never desyncs the reader.
	h2 := NewHeader(TypeTime, 6, 5, 0)
	body2 := EncodeTime(TimePayload{Latency: TV{Sec: 2}})
	if err := WriteFrame(&buf, h2, body2); err != nil {
		t.Fatal(err)
	}

	f1, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if f1.Header.Type != Type(999) {
		t.Fatalf("expected to decode the unknown-type header, got %v", f1.Header.Type)
	}

	f2, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if f2.Header.Type != TypeTime || f2.Header.RefersTo != 5 {
		t.Fatalf("reader failed to resynchronize after unknown type: %+v", f2.Header)
	}
}
