// ABOUTME: Audio output package for playing reference tones
// ABOUTME: Provides the Output interface with Oto and PortAudio backends
// Package output plays mono or interleaved float32 audio.
//
// The Oto backend is always available. PortAudio requires building with
// -tags portaudio.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(44100, 1)
//	err = out.Write(samples)
package output
