package util_test

import (
	"testing"
	"time"

	"github.com/oplab/gonio/util"
)

func TestLimiterAdmitsInRange(t *testing.T) {
	l := util.Limiter{Min: -20, Max: 70}
	for _, v := range []float64{-20, 0, 69.999, 70} {
		if !l.Check(v) {
			t.Errorf("expected %f to pass limiter %v", v, l)
		}
	}
}

func TestLimiterRejectsOutOfRange(t *testing.T) {
	l := util.Limiter{Min: -20, Max: 70}
	for _, v := range []float64{-20.001, 70.001, 1e9} {
		if l.Check(v) {
			t.Errorf("expected %f to fail limiter %v", v, l)
		}
	}
}

func TestClampHigh(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = 20.
	)
	clamped := util.Clamp(input, low, high)
	if clamped == input {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestClampLow(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = -1.
	)
	clamped := util.Clamp(input, low, high)
	if clamped == input {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestSecsToDuration(t *testing.T) {
	var dur time.Duration = 123456789
	secs := dur.Seconds()
	out := util.SecsToDuration(secs)
	if out != dur {
		t.Errorf("expected SecsToDuration to round trip, output %v != expected %v", out, dur)
	}
}

func TestAllElementsNumbers(t *testing.T) {
	cases := map[string]bool{
		"100":   true,
		"0.25":  true,
		"100ms": false,
		"10s":   false,
		"":      true,
	}
	for inp, expected := range cases {
		if got := util.AllElementsNumbers(inp); got != expected {
			t.Errorf("AllElementsNumbers(%q) = %v, expected %v", inp, got, expected)
		}
	}
}
