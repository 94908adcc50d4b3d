package codec

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/Resonate-Protocol/resonate-go/internal/errs"
	"github.com/Resonate-Protocol/resonate-go/internal/stream"
)

func wavHeader(rate, bits, channels int) []byte {
	h := make([]byte, 44)
	copy(h[0:4], "RIFF")
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(rate))
	binary.LittleEndian.PutUint16(h[34:36], uint16(bits))
	return h
}

func TestRegistryKnownCodecs(t *testing.T) {
	for _, name := range []string{"pcm", "opus", "flac", "mp3"} {
		if _, err := New(name); err != nil {
			t.Errorf("New(%q) = %v, want nil error", name, err)
		}
	}
}

func TestRegistryOggIsUnsupported(t *testing.T) {
	_, err := New("ogg")
	if err == nil {
		t.Fatal("expected an error for ogg, got nil")
	}
	if !errors.Is(err, errs.UnsupportedCodec) {
		t.Fatalf("expected an UnsupportedCodec error, got %v", err)
	}
}

func TestRegistryUnknownCodec(t *testing.T) {
	_, err := New("gsm")
	if !errors.Is(err, errs.UnsupportedCodec) {
		t.Fatalf("expected an UnsupportedCodec error, got %v", err)
	}
}

func TestPCMSetHeaderParsesWAVFormat(t *testing.T) {
	d := &PCM{}
	format, err := d.SetHeader(wavHeader(48000, 16, 2))
	if err != nil {
		t.Fatalf("SetHeader: %v", err)
	}
	want := stream.Format{Rate: 48000, Bits: 16, Channels: 2}
	if format != want {
		t.Fatalf("format = %+v, want %+v", format, want)
	}
}

func TestPCMSetHeaderTooShort(t *testing.T) {
	d := &PCM{}
	if _, err := d.SetHeader([]byte{0x01, 0x02}); err == nil {
		t.Fatal("expected an error for a truncated header, got nil")
	}
}

func TestPCMDecodeIsPassThrough(t *testing.T) {
	d := &PCM{}
	if _, err := d.SetHeader(wavHeader(44100, 16, 1)); err != nil {
		t.Fatalf("SetHeader: %v", err)
	}

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	chunk := &stream.Chunk{Data: payload}
	ok, err := d.Decode(chunk)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !ok {
		t.Fatal("expected Decode to report data produced")
	}
	if chunk.Format.Rate != 44100 || chunk.Format.Channels != 1 {
		t.Fatalf("chunk format not stamped: %+v", chunk.Format)
	}
	if len(chunk.Data) != len(payload) {
		t.Fatalf("pass-through decode changed length: %d", len(chunk.Data))
	}
}

func TestPCMDecodeEmptyInputReportsFalse(t *testing.T) {
	d := &PCM{}
	if _, err := d.SetHeader(wavHeader(48000, 16, 2)); err != nil {
		t.Fatalf("SetHeader: %v", err)
	}
	chunk := &stream.Chunk{Data: []byte{}}
	ok, err := d.Decode(chunk)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ok {
		t.Fatal("expected Decode to report no data for an empty chunk")
	}
}

func TestOpusSetHeaderRequires12Bytes(t *testing.T) {
	d := &Opus{}
	if _, err := d.SetHeader([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for a short opus codec header, got nil")
	}
}
