// ABOUTME: Frequency to key classification table
// ABOUTME: Binary search over sorted half-open frequency ranges
package keymap

import (
	"fmt"
	"math"
	"sort"
)

// Symbol identifies a logical key. The zero value None means no key.
type Symbol int

const (
	None Symbol = iota
	Down
	Left
	Right
	Up
	Backspace
	X
	Z
	A
	S
	Confirm
)

var symbolNames = map[Symbol]string{
	None:      "NONE",
	Down:      "DOWN",
	Left:      "LEFT",
	Right:     "RIGHT",
	Up:        "UP",
	Backspace: "BACKSPACE",
	X:         "X",
	Z:         "Z",
	A:         "A",
	S:         "S",
	Confirm:   "CONFIRM",
}

// String returns the wire name of the symbol
func (s Symbol) String() string {
	if name, ok := symbolNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Symbol(%d)", int(s))
}

// Parse converts a wire name back to a Symbol
func Parse(name string) (Symbol, error) {
	for sym, n := range symbolNames {
		if n == name {
			return sym, nil
		}
	}
	return None, fmt.Errorf("unknown symbol: %q", name)
}

// Range is one row of the classification table: [Low, High) Hz
type Range struct {
	Low    float64
	High   float64
	Symbol Symbol
}

// Contains reports whether freq falls inside the half-open range
func (r Range) Contains(freq float64) bool {
	return freq >= r.Low && freq < r.High
}

// Center returns the midpoint of the range in Hz
func (r Range) Center() float64 {
	return (r.Low + r.High) / 2
}

// table is sorted by Low and contiguous; each High equals the next Low.
var table = []Range{
	{100.0, 115.0, Down},
	{115.0, 130.0, Left},
	{130.0, 145.0, Right},
	{145.0, 160.0, Up},
	{160.0, 175.0, Backspace},
	{175.0, 200.0, X},
	{200.0, 230.0, Z},
	{230.0, 270.0, A},
	{270.0, 305.0, S},
	{305.0, 338.0, Confirm},
}

// Classify maps a frequency in Hz to a Symbol, or None when it falls
// outside every range (including NaN and infinities).
func Classify(freq float64) Symbol {
	if math.IsNaN(freq) || math.IsInf(freq, 0) {
		return None
	}

	// First row whose upper bound lies above freq
	i := sort.Search(len(table), func(i int) bool {
		return table[i].High > freq
	})
	if i == len(table) || !table[i].Contains(freq) {
		return None
	}
	return table[i].Symbol
}

// Ranges returns a copy of the classification table in ascending order
func Ranges() []Range {
	out := make([]Range, len(table))
	copy(out, table)
	return out
}

// RangeOf returns the table row for sym
func RangeOf(sym Symbol) (Range, bool) {
	for _, r := range table {
		if r.Symbol == sym {
			return r, true
		}
	}
	return Range{}, false
}

// MinFrequency and MaxFrequency bound the classifiable band
func MinFrequency() float64 { return table[0].Low }
func MaxFrequency() float64 { return table[len(table)-1].High }
