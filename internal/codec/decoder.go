// ABOUTME: Decoder plugin contract, keyed by codec name from CodecHeader
// ABOUTME: Registry mirrors the closed codec set the server may announce
package codec

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-go/internal/errs"
	"github.com/Resonate-Protocol/resonate-go/internal/stream"
)

// Decoder turns one encoded stream into PCM. SetHeader is called once,
// with the CodecHeader's init payload, and returns the sample format
// every subsequent Decode call will produce. Decode consumes one
// chunk's encoded Data in place, replacing it with raw PCM while
// preserving Timestamp; it returns false when the chunk yielded no
// audio (e.g. still priming) rather than an error.
type Decoder interface {
	SetHeader(initBytes []byte) (stream.Format, error)
	Decode(chunk *stream.Chunk) (bool, error)
}

// New returns the Decoder registered for codecName, or an
// UnsupportedCodec error if none is available.
func New(codecName string) (Decoder, error) {
	switch codecName {
	case "pcm":
		return &PCM{}, nil
	case "opus":
		return &Opus{}, nil
	case "flac":
		return &FLAC{}, nil
	case "mp3":
		return &MP3{}, nil
	case "ogg":
		// No vorbis/ogg decoding library is available; the codec is
		// named here so the error says ogg-vorbis decoding is missing
		// from this build rather than reporting an unknown codec name.
		return nil, fmt.Errorf("%w: ogg-vorbis decoding is not available in this build", errs.UnsupportedCodec)
	default:
		return nil, fmt.Errorf("%w: %s", errs.UnsupportedCodec, codecName)
	}
}
