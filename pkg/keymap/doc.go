// ABOUTME: Pitch classifier package mapping sung frequencies to keys
// ABOUTME: Holds the fixed frequency table and the Symbol type
// Package keymap maps a detected fundamental frequency to a symbolic key.
//
// The table is fixed: ten contiguous half-open ranges between 100 Hz and
// 338 Hz. A frequency equal to a range's lower bound belongs to that range;
// a frequency equal to its upper bound belongs to the next one (or to none).
//
// Example:
//
//	sym := keymap.Classify(121.0) // keymap.Left
//	if sym == keymap.None {
//	    // silence or out of range
//	}
package keymap
