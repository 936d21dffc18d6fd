// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams float32 samples as 16-bit PCM through a persistent oto player
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/harperreed/singkeys/pkg/audio"
)

// Oto output implementation using oto library
type Oto struct {
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	sampleRate int
	channels   int
	volume     int
	muted      bool
	ready      bool
	mu         sync.Mutex
}

// NewOto creates a new Oto output at full volume
func NewOto() *Oto {
	return &Oto{volume: 100}
}

// Open initializes the output device. Oto allows one context per process,
// so a second Open with a different format keeps the first format.
func (o *Oto) Open(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx != nil {
		if o.sampleRate != sampleRate || o.channels != channels {
			log.Printf("Warning: format change (%dHz %dch -> %dHz %dch) ignored, oto cannot reinitialize",
				o.sampleRate, o.channels, sampleRate, channels)
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.channels = channels

	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels", sampleRate, channels)
	return nil
}

// Write outputs audio samples (blocks until the player accepts them)
func (o *Oto) Write(samples []float32) error {
	o.mu.Lock()
	if !o.ready {
		o.mu.Unlock()
		return ErrNotOpen
	}
	scaled := applyVolume(samples, o.volume, o.muted)
	writer := o.pipeWriter
	o.mu.Unlock()

	output := make([]byte, len(scaled)*2)
	for i, s := range scaled {
		binary.LittleEndian.PutUint16(output[i*2:], uint16(audio.FloatToInt16(s)))
	}

	if _, err := writer.Write(output); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
	}
	o.ready = false
	return nil
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = clampVolume(volume)
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.muted = muted
}

// Volume returns current volume
func (o *Oto) Volume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}
