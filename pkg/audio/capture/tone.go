// ABOUTME: Synthetic tone capture source
// ABOUTME: Plays a schedule of sung-key frequencies for demos and tests
package capture

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/singkeys/pkg/audio"
	"github.com/harperreed/singkeys/pkg/keymap"
)

// toneAmplitude is 50% of full scale
const toneAmplitude = 0.5

// Segment is one step of a tone schedule. Frequency 0 is silence.
type Segment struct {
	Frequency float64
	Duration  time.Duration
}

// ParseSchedule parses "NOTE:duration,..." where NOTE is a key name
// (sung at the center of its range), a frequency in Hz, or 0 for silence.
func ParseSchedule(schedule string) ([]Segment, error) {
	var segments []Segment
	for _, item := range strings.Split(schedule, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		note, dur, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("tone %q: expected NOTE:duration", item)
		}

		freq, err := noteFrequency(strings.TrimSpace(note))
		if err != nil {
			return nil, fmt.Errorf("tone %q: %w", item, err)
		}

		d, err := time.ParseDuration(strings.TrimSpace(dur))
		if err != nil {
			return nil, fmt.Errorf("tone %q: %w", item, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("tone %q: duration must be positive", item)
		}

		segments = append(segments, Segment{Frequency: freq, Duration: d})
	}

	if len(segments) == 0 {
		return nil, errors.New("empty tone schedule")
	}
	return segments, nil
}

func noteFrequency(note string) (float64, error) {
	if freq, err := strconv.ParseFloat(note, 64); err == nil {
		if freq < 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
			return 0, fmt.Errorf("invalid frequency %v", freq)
		}
		return freq, nil
	}

	sym, err := keymap.Parse(strings.ToUpper(note))
	if err != nil {
		return 0, err
	}
	if sym == keymap.None {
		return 0, nil
	}
	r, ok := keymap.RangeOf(sym)
	if !ok {
		return 0, fmt.Errorf("no range for %s", sym)
	}
	return r.Center(), nil
}

// Tone generates sine waves following a schedule
type Tone struct {
	pacedSource

	config     Config
	segments   []Segment
	sampleRate int

	segment   int     // current segment index
	remaining int     // samples left in the current segment
	phase     float64 // radians, kept continuous across segments
}

// NewTone parses config.Tones (DefaultTones when empty)
func NewTone(config Config) (*Tone, error) {
	schedule := config.Tones
	if schedule == "" {
		schedule = DefaultTones
	}
	segments, err := ParseSchedule(schedule)
	if err != nil {
		return nil, err
	}

	rate := config.SampleRate
	if rate == 0 {
		rate = 44100
	}

	t := &Tone{
		config:     config,
		segments:   segments,
		sampleRate: rate,
	}
	total := 0
	for i := range segments {
		total += t.segmentSamples(i)
	}
	if total == 0 {
		return nil, errors.New("tone schedule shorter than one sample")
	}
	t.remaining = t.segmentSamples(0)
	t.pacedSource = pacedSource{
		name:     t.Name(),
		rate:     rate,
		realtime: config.Realtime,
		next:     t.next,
	}
	return t, nil
}

func (t *Tone) segmentSamples(i int) int {
	return int(t.segments[i].Duration.Seconds() * float64(t.sampleRate))
}

// next renders one batch, advancing through the schedule
func (t *Tone) next() ([]float32, error) {
	out := make([]float32, 0, t.config.BufferFrames)

	for len(out) < t.config.BufferFrames {
		if t.remaining <= 0 {
			t.segment++
			if t.segment == len(t.segments) {
				if !t.config.Loop {
					return out, io.EOF
				}
				t.segment = 0
			}
			t.remaining = t.segmentSamples(t.segment)
			if t.config.Debug {
				seg := t.segments[t.segment]
				log.Printf("[DEBUG] Tone segment %d: %.1f Hz for %v", t.segment, seg.Frequency, seg.Duration)
			}
			continue
		}

		freq := t.segments[t.segment].Frequency
		if freq == 0 {
			out = append(out, 0)
		} else {
			out = append(out, float32(toneAmplitude*math.Sin(t.phase)))
			t.phase += 2 * math.Pi * freq / float64(t.sampleRate)
			if t.phase > 2*math.Pi {
				t.phase -= 2 * math.Pi
			}
		}
		t.remaining--
	}
	return out, nil
}

// Segments returns the parsed schedule
func (t *Tone) Segments() []Segment {
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// Start implements Capture
func (t *Tone) Start(onSamples func(samples []float32)) error {
	return t.start(onSamples)
}

// Stop implements Capture
func (t *Tone) Stop() error {
	return t.stop()
}

// Close implements Capture
func (t *Tone) Close() error {
	return t.stop()
}

// Format implements Capture
func (t *Tone) Format() audio.Format {
	return audio.Format{Codec: "tone", SampleRate: t.sampleRate, Channels: 1, BitDepth: 32}
}

// Name implements Capture
func (t *Tone) Name() string {
	return fmt.Sprintf("tone: %d segments", len(t.segments))
}
