// ABOUTME: Audio capture package producing mono float32 sample batches
// ABOUTME: Malgo microphone, PortAudio (build tag), file replay and tone backends
// Package capture is the producer side of singkeys.
//
// Every backend delivers mono float32 batches to the callback given to
// Start, from its own goroutine (the audio driver's thread for device
// backends). The callback must return quickly; pushing into a
// framebuf.Buffer is the intended use.
//
// Backends:
//   - malgo: default microphone through miniaudio
//   - portaudio: microphone through PortAudio (build with -tags portaudio)
//   - file: replays an MP3, FLAC or WAV recording in real time
//   - tone: synthesises a schedule of sine tones, e.g. "LEFT:500ms,0:200ms"
//
// Example:
//
//	c, err := capture.New(capture.DefaultConfig())
//	if errors.Is(err, capture.ErrNoInputDevice) {
//	    log.Fatalf("no microphone")
//	}
//	err = c.Start(buf.Push)
package capture
