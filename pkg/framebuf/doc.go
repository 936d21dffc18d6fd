// ABOUTME: Audio frame buffer package shared by capture and analysis
// ABOUTME: Mutex-guarded FIFO of float32 samples drained in fixed windows
// Package framebuf decouples the audio capture callback from the analysis
// loop.
//
// The producer appends samples with Push from the driver callback; the
// consumer removes fixed-size windows from the front with Drain. Both run
// under one short critical section, so a drain never observes a partial
// push and samples are never reordered.
//
// Example:
//
//	buf := framebuf.New(0) // unbounded
//	buf.Push(samples)
//	if window, ok := buf.Drain(2048); ok {
//	    analyze(window)
//	}
package framebuf
