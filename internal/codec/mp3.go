package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-go/internal/stream"
	"github.com/hajimehoshi/go-mp3"
)

// MP3 decodes MP3 audio, a bonus codec beyond the closed set the
// protocol requires. go-mp3 always produces interleaved 16-bit stereo
// PCM, so the channel count and bit depth are fixed; only the sample
// rate is read from the stream.
type MP3 struct {
	format stream.Format
}

func (m *MP3) SetHeader(initBytes []byte) (stream.Format, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(initBytes))
	if err != nil {
		return stream.Format{}, fmt.Errorf("mp3: parse codec header: %w", err)
	}
	m.format = stream.Format{Rate: dec.SampleRate(), Bits: 16, Channels: 2}
	return m.format, nil
}

func (m *MP3) Decode(chunk *stream.Chunk) (bool, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(chunk.Data))
	if err != nil {
		return false, fmt.Errorf("mp3: decode chunk: %w", err)
	}

	var out []byte
	buf := make([]byte, 8192)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if err != io.EOF {
				return false, fmt.Errorf("mp3: decode: %w", err)
			}
			break
		}
	}

	chunk.Data = out
	chunk.Format = m.format
	return len(out) > 0, nil
}
