package motion_test

import (
	"errors"
	"testing"
	"time"

	"github.com/oplab/gonio/motion"
	"github.com/oplab/gonio/newport"
	"github.com/oplab/gonio/util"
)

// countingController wraps the mock and counts commands issued to the device
type countingController struct {
	*newport.MockESP300
	moves int
}

func (c *countingController) MoveAbs(axis string, pos float64) error {
	c.moves++
	return c.MockESP300.MoveAbs(axis, pos)
}

func quickSettle() motion.SettleConfig {
	return motion.SettleConfig{
		Tolerance:    0.05,
		PollInterval: time.Millisecond,
		Timeout:      2 * time.Second,
	}
}

func TestMoveToThenWaitSettledConverges(t *testing.T) {
	ctl := newport.NewMockESP300()
	ctl.SetVelocity("1", 10000)
	ax := motion.NewAxis(ctl, "1", util.Limiter{Min: -180, Max: 180}, quickSettle())
	if err := ax.MoveTo(45); err != nil {
		t.Fatal(err)
	}
	if err := ax.WaitSettled(0); err != nil {
		t.Fatal(err)
	}
	pos, err := ax.CurrentPosition()
	if err != nil {
		t.Fatal(err)
	}
	diff := pos - 45
	if diff < 0 {
		diff = -diff
	}
	if diff > 0.05 {
		t.Errorf("expected settled position within tolerance of 45, got %f", pos)
	}
}

func TestMoveToOutOfRangeIssuesNoCommand(t *testing.T) {
	ctl := &countingController{MockESP300: newport.NewMockESP300()}
	ax := motion.NewAxis(ctl, "1", util.Limiter{Min: -180, Max: 180}, quickSettle())
	err := ax.MoveTo(181)
	var oor motion.OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("expected OutOfRangeError, got %v", err)
	}
	if ctl.moves != 0 {
		t.Errorf("expected no device command for out of range move, got %d", ctl.moves)
	}
}

// stuckController reports never in position
type stuckController struct{}

func (stuckController) MoveAbs(string, float64) error      { return nil }
func (stuckController) GetPos(string) (float64, error)     { return 0, nil }
func (stuckController) GetInPosition(string) (bool, error) { return false, nil }

func TestWaitSettledTimesOut(t *testing.T) {
	ax := motion.NewAxis(stuckController{}, "1", util.Limiter{Min: -180, Max: 180}, motion.SettleConfig{
		Tolerance:    0.05,
		PollInterval: time.Millisecond,
		Timeout:      20 * time.Millisecond,
	})
	if err := ax.MoveTo(10); err != nil {
		t.Fatal(err)
	}
	err := ax.WaitSettled(0)
	var sto motion.SettleTimeoutError
	if !errors.As(err, &sto) {
		t.Fatalf("expected SettleTimeoutError, got %v", err)
	}
}

// commFailController fails all communication
type commFailController struct{ err error }

func (c commFailController) MoveAbs(string, float64) error      { return c.err }
func (c commFailController) GetPos(string) (float64, error)     { return 0, c.err }
func (c commFailController) GetInPosition(string) (bool, error) { return false, c.err }

func TestMoveToSurfacesCommErrorsUnretried(t *testing.T) {
	sentinel := errors.New("wire cut")
	ax := motion.NewAxis(commFailController{err: sentinel}, "1", util.Limiter{Min: -180, Max: 180}, quickSettle())
	if err := ax.MoveTo(10); !errors.Is(err, sentinel) {
		t.Errorf("expected the communication error verbatim, got %v", err)
	}
}
