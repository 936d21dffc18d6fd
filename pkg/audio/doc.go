// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and float/integer sample conversions
// Package audio provides the basic audio types shared by capture, decoding
// and playback.
//
// Samples travel through singkeys as mono float32 in [-1, 1]. This package
// converts integer PCM from decoders and devices into that form:
//   - Int16ToFloat / FloatToInt16 for 16-bit PCM
//   - IntToFloat for arbitrary bit depths (FLAC, WAV)
//   - Downmix for interleaved multi-channel frames
//
// Example:
//
//	mono := audio.Downmix(stereo, 2)
//	s := audio.Int16ToFloat(pcm16)
package audio
