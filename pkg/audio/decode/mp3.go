// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 files to interleaved float32 stereo samples
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/harperreed/singkeys/pkg/audio"
)

// MP3Decoder decodes MP3 audio
type MP3Decoder struct {
	src     io.ReadCloser
	decoder *mp3.Decoder
	format  audio.Format
	buf     []byte
}

// NewMP3 creates an MP3 decoder reading from src. The decoder owns src.
func NewMP3(src io.ReadCloser) (*MP3Decoder, error) {
	decoder, err := mp3.NewDecoder(src)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	return &MP3Decoder{
		src:     src,
		decoder: decoder,
		format: audio.Format{
			Codec:      "mp3",
			SampleRate: decoder.SampleRate(),
			Channels:   2, // go-mp3 always outputs stereo
			BitDepth:   16,
		},
	}, nil
}

// Format implements Decoder
func (d *MP3Decoder) Format() audio.Format {
	return d.format
}

// Read implements Decoder
func (d *MP3Decoder) Read(samples []float32) (int, error) {
	// 2 bytes per int16 sample, whole stereo frames only
	numBytes := (len(samples) / 2) * 4
	if numBytes == 0 {
		return 0, nil
	}
	if cap(d.buf) < numBytes {
		d.buf = make([]byte, numBytes)
	}
	buf := d.buf[:numBytes]

	n, err := io.ReadFull(d.decoder, buf)
	if err == io.ErrUnexpectedEOF {
		err = nil
	}

	numSamples := n / 2
	for i := 0; i < numSamples; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
		samples[i] = audio.Int16ToFloat(sample16)
	}

	if numSamples == 0 && err == nil {
		err = io.EOF
	}
	if err != nil && err != io.EOF {
		return numSamples, fmt.Errorf("mp3 decode error: %w", err)
	}
	return numSamples, err
}

// Close releases decoder resources
func (d *MP3Decoder) Close() error {
	return d.src.Close()
}
