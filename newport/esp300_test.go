package newport

import (
	"errors"
	"testing"
	"time"
)

func TestCommandFormatting(t *testing.T) {
	cases := []struct {
		axis, mnemonic string
		arg            []float64
		expected       string
	}{
		{"1", "PA", []float64{10.5}, "1PA10.5"},
		{"2", "PA", []float64{-45}, "2PA-45"},
		{"1", "TP", nil, "1TP?"},
		{"1", "MD", nil, "1MD?"},
		{"2", "VA", []float64{20}, "2VA20"},
	}
	for _, tc := range cases {
		got := command(tc.axis, tc.mnemonic, tc.arg...)
		if got != tc.expected {
			t.Errorf("command(%s, %s, %v) = %q, expected %q", tc.axis, tc.mnemonic, tc.arg, got, tc.expected)
		}
	}
}

func TestParseESPErrorNoError(t *testing.T) {
	if err := parseESPError("0"); err != nil {
		t.Errorf("expected nil error for code 0, got %v", err)
	}
}

func TestParseESPErrorGeneral(t *testing.T) {
	err := parseESPError("7")
	var espErr ESPError
	if !errors.As(err, &espErr) {
		t.Fatalf("expected ESPError, got %T", err)
	}
	if espErr.Code != 7 || espErr.Axis != 0 {
		t.Errorf("expected code 7 axis 0, got code %d axis %d", espErr.Code, espErr.Axis)
	}
}

func TestParseESPErrorAxisSpecific(t *testing.T) {
	// 206 = positive software limit reached on axis 2
	err := parseESPError("206")
	var espErr ESPError
	if !errors.As(err, &espErr) {
		t.Fatalf("expected ESPError, got %T", err)
	}
	if espErr.Code != 6 || espErr.Axis != 2 {
		t.Errorf("expected code 6 axis 2, got code %d axis %d", espErr.Code, espErr.Axis)
	}
}

func TestParseESPErrorGarbage(t *testing.T) {
	if err := parseESPError("bogus"); err == nil {
		t.Error("expected an error for a malformed response")
	}
}

func TestMockMoveConverges(t *testing.T) {
	m := NewMockESP300()
	m.SetVelocity("1", 10000) // fast, keep the test quick
	if err := m.MoveAbs("1", 90); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		done, err := m.GetInPosition("1")
		if err != nil {
			t.Fatal(err)
		}
		if done {
			pos, _ := m.GetPos("1")
			if pos != 90 {
				t.Errorf("expected settled position 90, got %f", pos)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("mock move did not converge")
}
