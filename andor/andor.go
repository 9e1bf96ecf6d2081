/*Package andor adapts Andor sCMOS cameras (SDK3) to the camera.FrameGrabber
contract used by the sweep.

InitializeLibrary must be called once per process before Open, and
FinalizeLibrary at exit.  Only one buffer is kept on the SDK queue; the
sweep is strictly serial so there is never more than one frame in flight.
*/
package andor

/*
#cgo CFLAGS: -I/usr/local
#cgo LDFLAGS: -L/usr/local/lib -latcore
#include <stdlib.h>
#include <atcore.h>

*/
import "C"
import (
	"fmt"
	"reflect"
	"time"
	"unsafe"

	"github.com/oplab/gonio/camera"
)

// waitSlack is added to the exposure time when waiting on the SDK for a frame
const waitSlack = 1 * time.Second

// Camera drives one SDK3 camera.  Zero value is not usable; call Open.
type Camera struct {
	// buffer is written to by the SDK.  uint64 forces 8-byte alignment.
	buffer []uint64

	cptr     *C.AT_U8
	cptrsize C.int

	bufferOnQueue bool

	// Handle is the SDK handle for this camera
	Handle int

	exposure time.Duration
	gainIdx  int

	width  int
	height int
	stride int
}

// Open connects to the camera at camIdx and allocates the frame buffer.
// A real camera is typically index 0; the SDK provides simulators at 1 and 2.
func Open(camIdx int) (*Camera, error) {
	var hndle C.AT_H
	err := Error(int(C.AT_Open(C.int(camIdx), &hndle)))
	if err != nil {
		return nil, err
	}
	c := &Camera{Handle: int(hndle)}
	err = c.cacheGeometry()
	if err != nil {
		c.Close()
		return nil, err
	}
	err = c.allocate()
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the connection to the camera
func (c *Camera) Close() error {
	return Error(int(C.AT_Close(C.AT_H(c.Handle))))
}

func (c *Camera) cacheGeometry() error {
	w, err := GetInt(c.Handle, "AOIWidth")
	if err != nil {
		return err
	}
	h, err := GetInt(c.Handle, "AOIHeight")
	if err != nil {
		return err
	}
	s, err := GetInt(c.Handle, "AOIStride")
	if err != nil {
		return err
	}
	c.width, c.height, c.stride = w, h, s
	return nil
}

func (c *Camera) allocate() error {
	sze, err := GetInt(c.Handle, "ImageSizeBytes")
	if err != nil {
		return err
	}
	c.buffer = make([]uint64, sze/8)
	c.cptr = (*C.AT_U8)(unsafe.Pointer(&c.buffer[0]))
	c.cptrsize = C.int(sze)
	return nil
}

// Configure sets the exposure time and preamp gain selection.  Both are
// checked against the device-reported limits before any SDK write; gain
// selects an index into the SimplePreAmpGainControl enum.
func (c *Camera) Configure(exposure time.Duration, gain float64) error {
	expS := exposure.Seconds()
	min, err := GetFloatMin(c.Handle, "ExposureTime")
	if err != nil {
		return err
	}
	max, err := GetFloatMax(c.Handle, "ExposureTime")
	if err != nil {
		return err
	}
	if expS < min || expS > max {
		return camera.OutOfRangeError{Param: "exposure", Commanded: expS, Min: min, Max: max}
	}
	count, err := GetEnumCount(c.Handle, "SimplePreAmpGainControl")
	if err != nil {
		return err
	}
	idx := int(gain)
	if idx < 0 || idx >= count {
		return camera.OutOfRangeError{Param: "gain", Commanded: gain, Min: 0, Max: float64(count - 1)}
	}
	err = SetFloat(c.Handle, "ExposureTime", expS)
	if err != nil {
		return err
	}
	err = SetEnumIndex(c.Handle, "SimplePreAmpGainControl", idx)
	if err != nil {
		return err
	}
	c.exposure = exposure
	c.gainIdx = idx
	return nil
}

// Capture triggers one exposure and blocks until the frame is read off the
// device.  The returned frame owns its pixel slice; the SDK buffer is reused
// on the next call.
func (c *Camera) Capture() (camera.Frame, error) {
	var f camera.Frame
	err := c.queueBuffer()
	if err != nil {
		return f, err
	}
	// AcquisitionStart is not writable while CameraAcquiring is true, so
	// always stop first and gobble the error
	IssueCommand(c.Handle, "AcquisitionStop")
	err = IssueCommand(c.Handle, "AcquisitionStart")
	if err != nil {
		return f, err
	}
	timeout := c.exposure + waitSlack
	err = c.waitBuffer(timeout)
	if err != nil {
		if drv, ok := err.(DRVError); ok && drv == errTimedOut {
			return f, camera.CaptureTimeoutError{Timeout: timeout}
		}
		return f, err
	}
	err = IssueCommand(c.Handle, "AcquisitionStop")
	if err != nil {
		return f, err
	}
	pix := c.unpack()
	return camera.Frame{
		Pix:       pix,
		Width:     c.width,
		Height:    c.height,
		Channels:  1,
		Exposure:  c.exposure,
		Gain:      float64(c.gainIdx),
		Timestamp: time.Now(),
	}, nil
}

func (c *Camera) queueBuffer() error {
	if len(c.buffer) == 0 {
		return fmt.Errorf("andor: frame buffer uninitialized, len=%d", len(c.buffer))
	}
	err := Error(int(C.AT_QueueBuffer(C.AT_H(c.Handle), c.cptr, c.cptrsize)))
	if err == nil {
		c.bufferOnQueue = true
	}
	return err
}

func (c *Camera) waitBuffer(timeout time.Duration) error {
	if !c.bufferOnQueue {
		return ErrBufferNotOnQueue
	}
	tout := C.uint(timeout.Nanoseconds() / 1e6)
	var (
		size C.int
		ptr  *C.AT_U8
	)
	return Error(int(C.AT_WaitBuffer(C.AT_H(c.Handle), &ptr, &size, tout)))
}

// unpack strips the row padding the SDK writes and copies the pixels out of
// the queue buffer.  16-bit encodings only.
func (c *Camera) unpack() []uint16 {
	raw := c.rawBytes()
	out := make([]uint16, 0, c.width*c.height)
	rowBytes := 2 * c.width
	bidx := 0
	for row := 0; row < c.height; row++ {
		out = append(out, bytesToUint(raw[bidx:bidx+rowBytes])...)
		bidx += c.stride
	}
	return out
}

func (c *Camera) rawBytes() []byte {
	var buf []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&buf))
	hdr.Data = uintptr(unsafe.Pointer(&c.buffer[0]))
	hdr.Len = int(c.cptrsize)
	hdr.Cap = int(c.cptrsize)
	return buf
}

func bytesToUint(b []byte) []uint16 {
	var ary []uint16
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&ary))
	hdr.Data = uintptr(unsafe.Pointer(&b[0]))
	hdr.Len = len(b) / 2
	hdr.Cap = cap(b) / 2
	return ary
}

// PreAmpGainOptions lists the valid gain selections by name, indexed by the
// value passed to Configure
func (c *Camera) PreAmpGainOptions() ([]string, error) {
	count, err := GetEnumCount(c.Handle, "SimplePreAmpGainControl")
	if err != nil {
		return nil, err
	}
	opts := make([]string, count)
	for i := 0; i < count; i++ {
		opts[i], err = GetEnumStringByIndex(c.Handle, "SimplePreAmpGainControl", i)
		if err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// GetTemperature reads the sensor temperature in Celcius
func (c *Camera) GetTemperature() (float64, error) {
	return GetFloat(c.Handle, "SensorTemperature")
}
