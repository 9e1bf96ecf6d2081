/*Package camera describes the frame grabber contract used by the scatterometry rig.

A FrameGrabber yields one Frame per capture call and holds no frame state
between calls.  Concrete implementations live in their vendor packages
(andor for the hardware, the mock in this package for tests and dry runs).
*/
package camera

import (
	"fmt"
	"time"
)

// Frame is one captured image plus its acquisition metadata.  Pix is a 1D
// slice strided by Width*Channels; the grabber does not retain it after
// Capture returns.
type Frame struct {
	// Pix holds the intensity samples, row-major, channel-minor
	Pix []uint16

	// Width and Height are the frame dimensions in pixels
	Width  int
	Height int

	// Channels is the sample count per pixel, 1 for mono
	Channels int

	// Exposure is the exposure time the frame was taken with
	Exposure time.Duration

	// Gain is the analog gain the frame was taken with
	Gain float64

	// Timestamp is when the frame was read off the device
	Timestamp time.Time
}

// FrameGrabber is the capture interface consumed by the sweep
type FrameGrabber interface {
	// Configure sets the exposure time and gain for subsequent captures,
	// validated against the device-reported limits
	Configure(exposure time.Duration, gain float64) error

	// Capture triggers one exposure and blocks until the frame is read
	Capture() (Frame, error)
}

// OutOfRangeError is generated by a capture parameter outside the
// device-reported limits
type OutOfRangeError struct {
	Param     string
	Commanded float64
	Min       float64
	Max       float64
}

func (e OutOfRangeError) Error() string {
	return fmt.Sprintf("camera: %s %g outside device limits [%g, %g]", e.Param, e.Commanded, e.Min, e.Max)
}

// CaptureTimeoutError is generated when no frame arrives within the
// driver timeout
type CaptureTimeoutError struct {
	Timeout time.Duration
}

func (e CaptureTimeoutError) Error() string {
	return fmt.Sprintf("camera: no frame within %s", e.Timeout)
}
