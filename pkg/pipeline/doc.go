// ABOUTME: Analysis loop package tying buffer, estimator, classifier and injector
// ABOUTME: Polls the frame buffer and turns each window into key actions
// Package pipeline runs the consumer side of singkeys.
//
// Each tick drains every complete window from the frame buffer, estimates
// its pitch, classifies the frequency, steps the key state machine and
// presses keys for Press and Repeat actions. Observers receive one Event
// per processed window.
//
// Example:
//
//	buf := framebuf.New(0)
//	loop, err := pipeline.New(pipeline.DefaultConfig(), buf,
//	    pitch.NewMcLeod(2048, 1024), inject.NewDryRun())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = loop.Run(ctx)
package pipeline
