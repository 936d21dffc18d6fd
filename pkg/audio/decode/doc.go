// ABOUTME: Audio file decoder package for replaying recordings
// ABOUTME: Provides Decoder interface and MP3, FLAC and WAV implementations
// Package decode reads audio files into interleaved float32 samples.
//
// Supports: MP3 (go-mp3), FLAC (mewkiz/flac), WAV (go-audio/wav).
//
// All decoders implement the Decoder interface and output samples in
// [-1, 1] regardless of the source bit depth. Read returns io.EOF once the
// stream is exhausted.
//
// Example:
//
//	dec, err := decode.Open("take1.flac")
//	buf := make([]float32, 4096)
//	n, err := dec.Read(buf)
package decode
