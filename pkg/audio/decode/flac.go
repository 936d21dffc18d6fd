// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC files frame by frame to interleaved float32 samples
package decode

import (
	"fmt"
	"io"

	"github.com/harperreed/singkeys/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC audio
type FLACDecoder struct {
	src     io.ReadCloser
	stream  *flac.Stream
	format  audio.Format
	pending []float32 // decoded samples not yet returned
}

// NewFLAC creates a FLAC decoder reading from src. The decoder owns src.
func NewFLAC(src io.ReadCloser) (*FLACDecoder, error) {
	stream, err := flac.New(src)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	return &FLACDecoder{
		src:    src,
		stream: stream,
		format: audio.Format{
			Codec:      "flac",
			SampleRate: int(info.SampleRate),
			Channels:   int(info.NChannels),
			BitDepth:   int(info.BitsPerSample),
		},
	}, nil
}

// Format implements Decoder
func (d *FLACDecoder) Format() audio.Format {
	return d.format
}

// Read implements Decoder
func (d *FLACDecoder) Read(samples []float32) (int, error) {
	samplesRead := 0

	for samplesRead < len(samples) {
		if len(d.pending) == 0 {
			if err := d.parseFrame(); err != nil {
				if err == io.EOF && samplesRead > 0 {
					return samplesRead, nil
				}
				return samplesRead, err
			}
		}

		n := copy(samples[samplesRead:], d.pending)
		d.pending = d.pending[n:]
		samplesRead += n
	}

	return samplesRead, nil
}

// parseFrame decodes the next frame into d.pending
func (d *FLACDecoder) parseFrame() error {
	frame, err := d.stream.ParseNext()
	if err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("flac decode error: %w", err)
	}

	channels := d.format.Channels
	blockSize := int(frame.BlockSize)
	out := make([]float32, 0, blockSize*channels)

	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < channels; ch++ {
			sample := frame.Subframes[ch].Samples[i]
			out = append(out, audio.IntToFloat(int(sample), d.format.BitDepth))
		}
	}

	d.pending = out
	return nil
}

// Close releases decoder resources
func (d *FLACDecoder) Close() error {
	return d.src.Close()
}
