package newport

import (
	"sync"
	"time"
)

// mockServoPeriod is the position integration period of the mock
const mockServoPeriod = time.Millisecond

// MockESP300 simulates an ESP300 well enough to exercise everything above
// the comm layer: moves take time proportional to distance over velocity,
// and the motion done flag clears while a move is in flight.
type MockESP300 struct {
	sync.Mutex
	pos    map[string]float64
	vel    map[string]float64
	moving map[string]bool
}

// NewMockESP300 returns a mock controller with all axes at zero
func NewMockESP300() *MockESP300 {
	return &MockESP300{
		pos:    make(map[string]float64),
		vel:    make(map[string]float64),
		moving: make(map[string]bool),
	}
}

func (m *MockESP300) velocity(axis string) float64 {
	v, ok := m.vel[axis]
	if !ok {
		v = 20 // deg/s, the rig's configured rotation speed
		m.vel[axis] = v
	}
	return v
}

// moveTo integrates position toward pos, then clears the moving flag
func (m *MockESP300) moveTo(axis string, pos float64) {
	tick := time.NewTicker(mockServoPeriod)
	defer tick.Stop()
	for range tick.C {
		m.Lock()
		step := m.velocity(axis) * mockServoPeriod.Seconds()
		cur := m.pos[axis]
		var next float64
		switch {
		case cur < pos:
			next = cur + step
		case cur > pos:
			next = cur - step
		}
		if (cur < pos && next >= pos) || (cur > pos && next <= pos) || cur == pos {
			m.pos[axis] = pos
			m.moving[axis] = false
			m.Unlock()
			return
		}
		m.pos[axis] = next
		m.Unlock()
	}
}

// MoveAbs starts a simulated move of an axis to an absolute position
func (m *MockESP300) MoveAbs(axis string, pos float64) error {
	m.Lock()
	defer m.Unlock()
	m.moving[axis] = true
	go m.moveTo(axis, pos)
	return nil
}

// MoveRel starts a simulated move of an axis by a relative amount
func (m *MockESP300) MoveRel(axis string, dist float64) error {
	m.Lock()
	target := m.pos[axis] + dist
	m.moving[axis] = true
	m.Unlock()
	go m.moveTo(axis, target)
	return nil
}

// GetPos returns the simulated position of an axis
func (m *MockESP300) GetPos(axis string) (float64, error) {
	m.Lock()
	defer m.Unlock()
	return m.pos[axis], nil
}

// GetInPosition returns true when no simulated move is in flight
func (m *MockESP300) GetInPosition(axis string) (bool, error) {
	m.Lock()
	defer m.Unlock()
	return !m.moving[axis], nil
}

// Home snaps the axis to zero
func (m *MockESP300) Home(axis string) error {
	m.Lock()
	defer m.Unlock()
	m.pos[axis] = 0
	return nil
}

// SetVelocity sets the simulated velocity of an axis
func (m *MockESP300) SetVelocity(axis string, vel float64) error {
	m.Lock()
	defer m.Unlock()
	m.vel[axis] = vel
	return nil
}

// GetVelocity returns the simulated velocity of an axis
func (m *MockESP300) GetVelocity(axis string) (float64, error) {
	m.Lock()
	defer m.Unlock()
	return m.velocity(axis), nil
}
