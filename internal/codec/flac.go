package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/resonate-go/internal/stream"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

// FLAC decodes a streaming FLAC session frame by frame. Its CodecHeader
// init payload is the FLAC stream header (fLaC marker + STREAMINFO
// block); each subsequent WireChunk carries exactly one FLAC frame,
// which is parsed against that header.
type FLAC struct {
	header []byte
	format stream.Format
}

func (f *FLAC) SetHeader(initBytes []byte) (stream.Format, error) {
	strm, err := flac.New(bytes.NewReader(initBytes))
	if err != nil {
		return stream.Format{}, fmt.Errorf("flac: parse stream header: %w", err)
	}
	defer strm.Close()

	info := strm.Info
	f.header = append([]byte(nil), initBytes...)
	f.format = stream.Format{
		Rate:     int(info.SampleRate),
		Bits:     int(info.BitsPerSample),
		Channels: int(info.NChannels),
	}
	return f.format, nil
}

func (f *FLAC) Decode(chunk *stream.Chunk) (bool, error) {
	if f.header == nil {
		return false, fmt.Errorf("flac: decode called before codec header")
	}

	// mewkiz/flac only exposes frame parsing through a stream that owns
	// the STREAMINFO block, so each chunk is parsed against a header +
	// single-frame stream rather than a persistent frame reader.
	combined := make([]byte, 0, len(f.header)+len(chunk.Data))
	combined = append(combined, f.header...)
	combined = append(combined, chunk.Data...)

	strm, err := flac.New(bytes.NewReader(combined))
	if err != nil {
		return false, fmt.Errorf("flac: open frame stream: %w", err)
	}
	defer strm.Close()

	fr, err := strm.ParseNext()
	if err != nil {
		return false, fmt.Errorf("flac: parse frame: %w", err)
	}

	pcm := interleaveFrame(fr, f.format.Bits)
	chunk.Data = pcm
	chunk.Format = f.format
	return len(pcm) > 0, nil
}

// interleaveFrame converts a FLAC frame's per-channel sample slices
// into little-endian interleaved PCM at the given bit depth.
func interleaveFrame(fr *frame.Frame, bits int) []byte {
	channels := len(fr.Subframes)
	if channels == 0 {
		return nil
	}
	blockSize := int(fr.BlockSize)
	bytesPerSample := bits / 8
	out := make([]byte, blockSize*channels*bytesPerSample)

	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < channels; ch++ {
			s := fr.Subframes[ch].Samples[i]
			off := (i*channels + ch) * bytesPerSample
			switch bytesPerSample {
			case 2:
				binary.LittleEndian.PutUint16(out[off:], uint16(int16(s)))
			case 3:
				v := uint32(s)
				out[off] = byte(v)
				out[off+1] = byte(v >> 8)
				out[off+2] = byte(v >> 16)
			default:
				binary.LittleEndian.PutUint32(out[off:], uint32(s))
			}
		}
	}
	return out
}
