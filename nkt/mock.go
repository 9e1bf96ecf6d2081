package nkt

import "sync"

// MockSuperK is a fake SuperK source for hardware-free bringup
type MockSuperK struct {
	sync.Mutex

	emission bool
	shutter  bool
	power    float64
}

// NewMockSuperK returns a mock source with emission off and zero power
func NewMockSuperK() *MockSuperK {
	return &MockSuperK{}
}

// SetEmission turns (fake) emission on or off
func (m *MockSuperK) SetEmission(on bool) error {
	m.Lock()
	defer m.Unlock()
	m.emission = on
	return nil
}

// GetEmission queries if emission is enabled
func (m *MockSuperK) GetEmission() (bool, error) {
	m.Lock()
	defer m.Unlock()
	return m.emission, nil
}

// SetShutterOpen opens or closes the fake beam path
func (m *MockSuperK) SetShutterOpen(open bool) error {
	m.Lock()
	defer m.Unlock()
	m.shutter = open
	return nil
}

// SetPower sets the fake power level, percent
func (m *MockSuperK) SetPower(level float64) error {
	m.Lock()
	defer m.Unlock()
	m.power = level
	return nil
}

// GetPower retrieves the fake power level, percent
func (m *MockSuperK) GetPower() (float64, error) {
	m.Lock()
	defer m.Unlock()
	return m.power, nil
}
