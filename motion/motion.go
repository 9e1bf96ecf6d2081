// Package motion contains an abstract interface for motion controllers and
// the Axis type, which binds one controller channel to travel limits and
// settle detection.
package motion

import (
	"context"
	"fmt"
	"time"

	"github.com/oplab/gonio/util"

	"golang.org/x/time/rate"
)

// Controller describes the minimum method set a motion controller must
// expose for an Axis to drive one of its channels.  Package newport
// satisfies this, as does its mock.
type Controller interface {
	// MoveAbs moves an axis to an absolute position
	MoveAbs(string, float64) error

	// GetPos gets the current position of an axis
	GetPos(string) (float64, error)

	// GetInPosition returns true if the axis has completed its last move
	GetInPosition(string) (bool, error)
}

// Homer is implemented by controllers which can home an axis
type Homer interface {
	Home(string) error
}

// OutOfRangeError is generated when a commanded position violates the
// configured travel limits.  No command is sent to the device.
type OutOfRangeError struct {
	Axis      string
	Commanded float64
	Limits    util.Limiter
}

func (e OutOfRangeError) Error() string {
	return fmt.Sprintf("axis %s: commanded position %g outside travel limits [%g, %g]",
		e.Axis, e.Commanded, e.Limits.Min, e.Limits.Max)
}

// SettleTimeoutError is generated when an axis does not report motion done
// within the allowed time
type SettleTimeoutError struct {
	Axis    string
	Timeout time.Duration
}

func (e SettleTimeoutError) Error() string {
	return fmt.Sprintf("axis %s: motion not settled within %v", e.Axis, e.Timeout)
}

// SettleConfig holds the knobs for settle detection.  The original rig
// never wrote these numbers down; they are configuration, not constants.
type SettleConfig struct {
	// Tolerance is the maximum |commanded - reported| position after the
	// controller reports motion done, in axis units (degrees here)
	Tolerance float64 `yaml:"Tolerance"`

	// PollInterval is how often the motion done flag is queried
	PollInterval time.Duration `yaml:"PollInterval"`

	// Timeout is the default settle timeout when WaitSettled is passed zero
	Timeout time.Duration `yaml:"Timeout"`
}

// DefaultSettle is used for any field of SettleConfig left at zero
var DefaultSettle = SettleConfig{
	Tolerance:    0.05,
	PollInterval: 100 * time.Millisecond,
	Timeout:      60 * time.Second,
}

// Axis binds one channel of a Controller to travel limits and settle
// behavior.  The zero value is not usable; use NewAxis.
type Axis struct {
	ctl  Controller
	name string

	// Limits bound MoveTo commands.  Mutating after construction is allowed;
	// the rig operator narrows them when a specimen holder would collide.
	Limits util.Limiter

	// Settle configures settle detection
	Settle SettleConfig

	commanded float64
	moved     bool
}

// NewAxis returns an Axis over channel name of ctl, bounded by limits.
// Zero-valued fields of settle fall back to DefaultSettle.
func NewAxis(ctl Controller, name string, limits util.Limiter, settle SettleConfig) *Axis {
	if settle.Tolerance == 0 {
		settle.Tolerance = DefaultSettle.Tolerance
	}
	if settle.PollInterval == 0 {
		settle.PollInterval = DefaultSettle.PollInterval
	}
	if settle.Timeout == 0 {
		settle.Timeout = DefaultSettle.Timeout
	}
	return &Axis{ctl: ctl, name: name, Limits: limits, Settle: settle}
}

// Name returns the controller channel this axis drives
func (a *Axis) Name() string { return a.name }

// MoveTo commands an absolute move.  If angle violates the travel limits
// an OutOfRangeError is returned and nothing is sent to the device.
// Exactly one device command is issued; communication failures are returned
// as-is and never retried here, the caller decides what a retry means.
func (a *Axis) MoveTo(angle float64) error {
	if !a.Limits.Check(angle) {
		return OutOfRangeError{Axis: a.name, Commanded: angle, Limits: a.Limits}
	}
	err := a.ctl.MoveAbs(a.name, angle)
	if err != nil {
		return err
	}
	a.commanded = angle
	a.moved = true
	return nil
}

// WaitSettled blocks until the controller reports motion done and the
// reported position is within Settle.Tolerance of the last commanded
// position, or until timeout elapses (SettleTimeoutError).  A timeout of
// zero means Settle.Timeout.
func (a *Axis) WaitSettled(timeout time.Duration) error {
	if timeout == 0 {
		timeout = a.Settle.Timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	// rate limit the status polling; a tight loop over a 19200 baud link
	// starves the controller of time to execute the move it was just sent
	lim := rate.NewLimiter(rate.Every(a.Settle.PollInterval), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			return SettleTimeoutError{Axis: a.name, Timeout: timeout}
		}
		done, err := a.ctl.GetInPosition(a.name)
		if err != nil {
			return err
		}
		if !done {
			continue
		}
		if !a.moved {
			return nil
		}
		pos, err := a.ctl.GetPos(a.name)
		if err != nil {
			return err
		}
		diff := pos - a.commanded
		if diff < 0 {
			diff = -diff
		}
		if diff <= a.Settle.Tolerance {
			return nil
		}
	}
}

// TravelLimits returns the configured travel limits of the axis
func (a *Axis) TravelLimits() util.Limiter { return a.Limits }

// CurrentPosition returns the controller-reported position of the axis
func (a *Axis) CurrentPosition() (float64, error) {
	return a.ctl.GetPos(a.name)
}

// Home homes the axis if the controller supports it
func (a *Axis) Home() error {
	h, ok := a.ctl.(Homer)
	if !ok {
		return fmt.Errorf("axis %s: controller cannot home", a.name)
	}
	return h.Home(a.name)
}
