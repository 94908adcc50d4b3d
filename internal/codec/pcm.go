package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/resonate-go/internal/stream"
)

// PCM is a pass-through decoder: the wire payload already is raw PCM.
// Its CodecHeader init payload is a standard 44-byte WAV header, whose
// fmt chunk announces the sample format the stream will use.
type PCM struct {
	format stream.Format
}

func (p *PCM) SetHeader(initBytes []byte) (stream.Format, error) {
	if len(initBytes) < 36 {
		return stream.Format{}, fmt.Errorf("pcm: codec header too short for a WAV fmt chunk: %d bytes", len(initBytes))
	}
	channels := int(binary.LittleEndian.Uint16(initBytes[22:24]))
	rate := int(binary.LittleEndian.Uint32(initBytes[24:28]))
	bits := int(binary.LittleEndian.Uint16(initBytes[34:36]))
	p.format = stream.Format{Rate: rate, Bits: bits, Channels: channels}
	return p.format, nil
}

func (p *PCM) Decode(chunk *stream.Chunk) (bool, error) {
	chunk.Format = p.format
	return len(chunk.Data) > 0, nil
}
