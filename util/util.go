// Package util contains misc internal utilities.
package util

import (
	"time"
	"unicode"
)

// Limiter is a closed interval of allowed values
type Limiter struct {
	// Min is the lower bound of the interval
	Min float64 `yaml:"Min" json:"min"`

	// Max is the upper bound of the interval
	Max float64 `yaml:"Max" json:"max"`
}

// Check returns true if Min <= v <= Max.  The zero value of Limiter
// admits only zero; a Limiter with no meaningful bounds should not exist.
func (l Limiter) Check(v float64) bool {
	return (v >= l.Min) && (v <= l.Max)
}

// Clamp restricts v to the range [low, high]
func Clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

// SecsToDuration converts a floating point number of seconds to a Duration
func SecsToDuration(s float64) time.Duration {
	return time.Duration(s * 1e9)
}

// AllElementsNumbers returns true if every rune in the string is a digit or
// decimal point.  Used to distinguish "100" from "100ms" in user input.
func AllElementsNumbers(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return false
		}
	}
	return true
}
