package camera

import (
	"sync"
	"time"
)

// Mock is a synthetic frame source.  Captures return a gradient pattern
// so downstream code can verify pixel ordering.
type Mock struct {
	sync.Mutex

	// Width and Height are the synthetic frame dimensions
	Width  int
	Height int

	// ExposureMin, ExposureMax bound Configure, mirroring a real driver
	ExposureMin time.Duration
	ExposureMax time.Duration

	// GainMin, GainMax likewise
	GainMin float64
	GainMax float64

	exposure time.Duration
	gain     float64
}

// NewMock returns a mock camera with limits loosely modeled on an sCMOS
func NewMock() *Mock {
	return &Mock{
		Width:       64,
		Height:      48,
		ExposureMin: 10 * time.Microsecond,
		ExposureMax: 30 * time.Second,
		GainMin:     1,
		GainMax:     30,
		exposure:    10 * time.Millisecond,
		gain:        1,
	}
}

// Configure sets the exposure time and gain, honoring the mock's limits
func (m *Mock) Configure(exposure time.Duration, gain float64) error {
	m.Lock()
	defer m.Unlock()
	if exposure < m.ExposureMin || exposure > m.ExposureMax {
		return OutOfRangeError{
			Param:     "exposure",
			Commanded: exposure.Seconds(),
			Min:       m.ExposureMin.Seconds(),
			Max:       m.ExposureMax.Seconds()}
	}
	if gain < m.GainMin || gain > m.GainMax {
		return OutOfRangeError{
			Param:     "gain",
			Commanded: gain,
			Min:       m.GainMin,
			Max:       m.GainMax}
	}
	m.exposure = exposure
	m.gain = gain
	return nil
}

// Capture returns a synthetic frame immediately
func (m *Mock) Capture() (Frame, error) {
	m.Lock()
	defer m.Unlock()
	pix := make([]uint16, m.Width*m.Height)
	for i := range pix {
		pix[i] = uint16(i % 65536)
	}
	return Frame{
		Pix:       pix,
		Width:     m.Width,
		Height:    m.Height,
		Channels:  1,
		Exposure:  m.exposure,
		Gain:      m.gain,
		Timestamp: time.Now(),
	}, nil
}
