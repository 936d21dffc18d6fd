// ABOUTME: Audio output interface tests
// ABOUTME: Verifies Output implementations and volume scaling
package output

import (
	"errors"
	"testing"
)

func TestImplementsOutput(t *testing.T) {
	var _ Output = (*PortAudio)(nil)
	var _ Output = (*Oto)(nil)
}

func TestOtoWriteBeforeOpen(t *testing.T) {
	out := NewOto()
	if err := out.Write([]float32{0.1}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("Close on unopened output: %v", err)
	}
}

func TestOtoVolumeClamp(t *testing.T) {
	out := NewOto()
	if out.Volume() != 100 {
		t.Errorf("expected default volume 100, got %d", out.Volume())
	}

	tests := []struct {
		set      int
		expected int
	}{
		{50, 50},
		{-5, 0},
		{150, 100},
	}
	for _, tt := range tests {
		out.SetVolume(tt.set)
		if out.Volume() != tt.expected {
			t.Errorf("SetVolume(%d): expected %d, got %d", tt.set, tt.expected, out.Volume())
		}
	}
}

func TestApplyVolume(t *testing.T) {
	tests := []struct {
		name     string
		volume   int
		muted    bool
		input    float32
		expected float32
	}{
		{"full", 100, false, 0.5, 0.5},
		{"half", 50, false, 0.5, 0.25},
		{"muted", 100, true, 0.5, 0},
		{"zero", 0, false, -0.5, 0},
		{"clip high", 100, false, 1.5, 1},
		{"clip low", 100, false, -1.5, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyVolume([]float32{tt.input}, tt.volume, tt.muted)
			if got[0] != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got[0])
			}
		})
	}
}

func TestApplyVolumeDoesNotModifyInput(t *testing.T) {
	input := []float32{0.8, -0.8}
	applyVolume(input, 25, false)
	if input[0] != 0.8 || input[1] != -0.8 {
		t.Errorf("input modified: %v", input)
	}
}
