// ABOUTME: Goroutine loop shared by the file and tone sources
// ABOUTME: Delivers generated batches, optionally paced to the wall clock
package capture

import (
	"errors"
	"io"
	"log"
	"sync"
	"time"
)

// pacedSource runs next in a goroutine until it fails or Stop is called
type pacedSource struct {
	errorSink

	name     string
	rate     int
	realtime bool
	next     func() ([]float32, error)

	mu       sync.Mutex
	started  bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func (s *pacedSource) start(onSamples func(samples []float32)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("capture already started")
	}
	s.started = true
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.run(onSamples)
	return nil
}

func (s *pacedSource) run(onSamples func(samples []float32)) {
	defer s.wg.Done()

	begin := time.Now()
	var delivered int64

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		samples, err := s.next()
		if len(samples) > 0 {
			if s.realtime {
				// Hold each batch until the wall clock reaches its start time
				due := begin.Add(time.Duration(delivered) * time.Second / time.Duration(s.rate))
				if wait := time.Until(due); wait > 0 {
					timer := time.NewTimer(wait)
					select {
					case <-s.stopChan:
						timer.Stop()
						return
					case <-timer.C:
					}
				}
			}
			onSamples(samples)
			delivered += int64(len(samples))
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Printf("%s: end of input", s.name)
				s.notify(err)
			} else {
				s.report(err)
			}
			return
		}
	}
}

func (s *pacedSource) stop() error {
	s.mu.Lock()
	if s.stopChan != nil {
		s.stopOnce.Do(func() { close(s.stopChan) })
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
