package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/resonate-go/internal/stream"
	"gopkg.in/hraban/opus.v2"
)

// Opus decodes an Opus stream to 16-bit PCM. Its CodecHeader init
// payload is three little-endian uint32s: sample rate, bits per
// sample, channel count.
type Opus struct {
	decoder *opus.Decoder
	format  stream.Format
}

func (o *Opus) SetHeader(initBytes []byte) (stream.Format, error) {
	if len(initBytes) < 12 {
		return stream.Format{}, fmt.Errorf("opus: codec header must carry rate,bits,channels (12 bytes), got %d", len(initBytes))
	}
	rate := int(binary.LittleEndian.Uint32(initBytes[0:4]))
	bits := int(binary.LittleEndian.Uint32(initBytes[4:8]))
	channels := int(binary.LittleEndian.Uint32(initBytes[8:12]))

	dec, err := opus.NewDecoder(rate, channels)
	if err != nil {
		return stream.Format{}, fmt.Errorf("opus: new decoder: %w", err)
	}

	o.decoder = dec
	o.format = stream.Format{Rate: rate, Bits: bits, Channels: channels}
	return o.format, nil
}

func (o *Opus) Decode(chunk *stream.Chunk) (bool, error) {
	pcmSize := 5760 * o.format.Channels // max Opus frame size
	pcm16 := make([]int16, pcmSize)

	n, err := o.decoder.Decode(chunk.Data, pcm16)
	if err != nil {
		return false, fmt.Errorf("opus: decode: %w", err)
	}

	samples := n * o.format.Channels
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(pcm16[i]))
	}

	chunk.Data = out
	chunk.Format = o.format
	return samples > 0, nil
}
