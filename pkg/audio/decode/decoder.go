// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for all file decoders plus extension-based Open
package decode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harperreed/singkeys/pkg/audio"
)

// ErrUnsupportedFormat is returned for file types without a decoder
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decoder decodes an audio file to interleaved float32 samples
type Decoder interface {
	// Format describes the decoded stream
	Format() audio.Format

	// Read fills samples with interleaved PCM and returns the count.
	// Returns io.EOF when no samples remain.
	Read(samples []float32) (int, error)

	// Close releases decoder resources
	Close() error
}

// Open picks a decoder by file extension
func Open(path string) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp3", ".flac", ".wav":
	default:
		return nil, fmt.Errorf("%w: %s (supported: .mp3, .flac, .wav)", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	var dec Decoder
	switch ext {
	case ".mp3":
		dec, err = NewMP3(f)
	case ".flac":
		dec, err = NewFLAC(f)
	case ".wav":
		dec, err = NewWAV(f)
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	return dec, nil
}
