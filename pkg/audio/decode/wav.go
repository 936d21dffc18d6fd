// ABOUTME: WAV audio decoder
// ABOUTME: Decodes PCM WAV files through go-audio/wav to float32 samples
package decode

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/harperreed/singkeys/pkg/audio"
)

// WAVDecoder decodes PCM WAV audio
type WAVDecoder struct {
	src     io.ReadSeekCloser
	decoder *wav.Decoder
	format  audio.Format
	buf     *goaudio.IntBuffer
}

// NewWAV creates a WAV decoder reading from src. The decoder owns src.
func NewWAV(src io.ReadSeekCloser) (*WAVDecoder, error) {
	decoder := wav.NewDecoder(src)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("failed to decode WAV: invalid file")
	}

	if err := decoder.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to find WAV PCM data: %w", err)
	}

	f := decoder.Format()
	return &WAVDecoder{
		src:     src,
		decoder: decoder,
		format: audio.Format{
			Codec:      "wav",
			SampleRate: f.SampleRate,
			Channels:   f.NumChannels,
			BitDepth:   int(decoder.BitDepth),
		},
		buf: &goaudio.IntBuffer{Format: f},
	}, nil
}

// Format implements Decoder
func (d *WAVDecoder) Format() audio.Format {
	return d.format
}

// Read implements Decoder
func (d *WAVDecoder) Read(samples []float32) (int, error) {
	// Whole frames only
	want := len(samples) - len(samples)%d.format.Channels
	if want == 0 {
		return 0, nil
	}
	if cap(d.buf.Data) < want {
		d.buf.Data = make([]int, want)
	}
	d.buf.Data = d.buf.Data[:want]

	n, err := d.decoder.PCMBuffer(d.buf)
	if err != nil {
		return 0, fmt.Errorf("wav decode error: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		samples[i] = audio.IntToFloat(d.buf.Data[i], d.format.BitDepth)
	}
	return n, nil
}

// Close releases decoder resources
func (d *WAVDecoder) Close() error {
	return d.src.Close()
}
