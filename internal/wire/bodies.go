package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// HelloPayload is the JSON body of a client->server Hello message.
type HelloPayload struct {
	MAC      string `json:"MAC"`
	HostName string `json:"HostName"`
	Version  string `json:"Version"`
	ClientName string `json:"ClientName"`
	OS       string `json:"OS"`
	Arch     string `json:"Arch"`
	Instance int    `json:"Instance"`
	ID       string `json:"ID"`
}

// ServerSettingsPayload is the JSON body of a ServerSettings message.
type ServerSettingsPayload struct {
	BufferMs int  `json:"buffer_ms"`
	Latency  int  `json:"latency"`
	Volume   int  `json:"volume"`
	Muted    bool `json:"muted"`
}

// TimePayload is the binary body of a Time message: a single tv field
// carrying the server's reported one-way latency (request) or, in the
// reply, the same field repurposed per §4.B to derive the offset.
type TimePayload struct {
	Latency TV
}

// WireChunkPayload carries a capture timestamp and an opaque encoded
// audio payload.
type WireChunkPayload struct {
	Timestamp TV
	Payload   []byte
}

// CodecHeaderPayload announces the codec name and its opaque init bytes.
type CodecHeaderPayload struct {
	Codec   string
	Payload []byte
}

// StreamTagsPayload is an arbitrary JSON object of stream metadata.
type StreamTagsPayload struct {
	Raw json.RawMessage
}

// EncodeJSON wraps v in a string-length-prefixed JSON body, as used by
// Hello, ServerSettings, and StreamTags.
func EncodeJSON(v any) ([]byte, error) {
	js, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal json body: %w", err)
	}
	var buf bytes.Buffer
	if err := WriteString(&buf, string(js)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeJSON reads a string-length-prefixed JSON body into v.
func DecodeJSON(body []byte, v any) error {
	r := bytes.NewReader(body)
	s, err := ReadString(r)
	if err != nil {
		return fmt.Errorf("wire: read json string: %w", err)
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("wire: unmarshal json body: %w", err)
	}
	return nil
}

// EncodeTime encodes a TimePayload body: a single tv.
func EncodeTime(p TimePayload) []byte {
	buf := make([]byte, 8)
	putTV(buf, p.Latency)
	return buf
}

// DecodeTime decodes a TimePayload body.
func DecodeTime(body []byte) (TimePayload, error) {
	if len(body) != 8 {
		return TimePayload{}, fmt.Errorf("wire: time body must be 8 bytes, got %d", len(body))
	}
	return TimePayload{Latency: getTV(body)}, nil
}

// EncodeWireChunk encodes a WireChunkPayload body: tv timestamp, u32
// payload size, then raw bytes.
func EncodeWireChunk(p WireChunkPayload) ([]byte, error) {
	var buf bytes.Buffer
	tv := make([]byte, 8)
	putTV(tv, p.Timestamp)
	buf.Write(tv)
	if err := WriteBytes(&buf, p.Payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeWireChunk decodes a WireChunkPayload body.
func DecodeWireChunk(body []byte) (WireChunkPayload, error) {
	if len(body) < 8 {
		return WireChunkPayload{}, fmt.Errorf("wire: wire chunk body shorter than timestamp")
	}
	ts := getTV(body[:8])
	r := bytes.NewReader(body[8:])
	payload, err := ReadBytes(r)
	if err != nil {
		return WireChunkPayload{}, err
	}
	return WireChunkPayload{Timestamp: ts, Payload: payload}, nil
}

// EncodeCodecHeader encodes a CodecHeaderPayload body: string codec,
// u32 payload size, then init bytes.
func EncodeCodecHeader(p CodecHeaderPayload) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteString(&buf, p.Codec); err != nil {
		return nil, err
	}
	if err := WriteBytes(&buf, p.Payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeCodecHeader decodes a CodecHeaderPayload body.
func DecodeCodecHeader(body []byte) (CodecHeaderPayload, error) {
	r := bytes.NewReader(body)
	codec, err := ReadString(r)
	if err != nil {
		return CodecHeaderPayload{}, err
	}
	payload, err := ReadBytes(r)
	if err != nil {
		return CodecHeaderPayload{}, err
	}
	return CodecHeaderPayload{Codec: codec, Payload: payload}, nil
}

func putTV(buf []byte, t TV) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(t.Sec))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(t.Usec))
}

func getTV(buf []byte) TV {
	return TV{
		Sec:  int32(binary.LittleEndian.Uint32(buf[0:4])),
		Usec: int32(binary.LittleEndian.Uint32(buf[4:8])),
	}
}
