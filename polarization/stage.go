// Package polarization composes the linear polarizer and quarter-wave plate
// rotation mounts into a single Stokes-analysis stage.
package polarization

import (
	"fmt"
	"time"
)

// Axis is the slice of the motion axis surface the stage needs
type Axis interface {
	MoveTo(float64) error
	WaitSettled(time.Duration) error
}

// Configuration is one analysis state of the stage: a linear polarizer
// angle and a quarter-wave plate angle, both in degrees.
// Hardware zero conventions: polarizer 0 is vertical (S, perpendicular to
// the plane of incidence); wave plate 0 is horizontal (fast axis).
type Configuration struct {
	Name      string  `yaml:"Name"`
	Polarizer float64 `yaml:"Polarizer"`
	Retarder  float64 `yaml:"Retarder"`
}

// DefaultConfigurations are the six analysis states used to recover a full
// Stokes vector.  The circular states put the wave plate fast axis 45
// degrees off the polarizer transmission axis.
var DefaultConfigurations = []Configuration{
	{Name: "horizontal", Polarizer: 90, Retarder: 90},
	{Name: "vertical", Polarizer: 0, Retarder: 0},
	{Name: "diagonal", Polarizer: 45, Retarder: 45},
	{Name: "antidiagonal", Polarizer: -45, Retarder: -45},
	{Name: "right-circular", Polarizer: 0, Retarder: 45},
	{Name: "left-circular", Polarizer: 0, Retarder: -45},
}

// UnknownConfigurationError is generated when a configuration index is
// outside the defined set.  No axis is moved.
type UnknownConfigurationError struct {
	Index int
	Count int
}

func (e UnknownConfigurationError) Error() string {
	return fmt.Sprintf("polarization configuration %d unknown, stage defines %d", e.Index, e.Count)
}

// Stage is the two-axis Stokes-analysis stage
type Stage struct {
	polarizer Axis
	retarder  Axis
	configs   []Configuration
}

// NewStage returns a Stage over the polarizer and wave plate axes.
// A nil configs uses DefaultConfigurations.
func NewStage(polarizer, retarder Axis, configs []Configuration) *Stage {
	if configs == nil {
		configs = DefaultConfigurations
	}
	return &Stage{polarizer: polarizer, retarder: retarder, configs: configs}
}

// Count returns the number of defined configurations
func (s *Stage) Count() int { return len(s.configs) }

// Configuration returns the configuration at index idx
func (s *Stage) Configuration(idx int) (Configuration, error) {
	if idx < 0 || idx >= len(s.configs) {
		return Configuration{}, UnknownConfigurationError{Index: idx, Count: len(s.configs)}
	}
	return s.configs[idx], nil
}

// SetConfiguration moves both axes to the angles of configuration idx and
// waits for both to settle.  The moves are issued back to back so the
// mounts rotate concurrently.  On return without error, both axes are in
// position within their settle tolerance.
func (s *Stage) SetConfiguration(idx int) error {
	cfg, err := s.Configuration(idx)
	if err != nil {
		return err
	}
	if err := s.polarizer.MoveTo(cfg.Polarizer); err != nil {
		return err
	}
	if err := s.retarder.MoveTo(cfg.Retarder); err != nil {
		return err
	}
	if err := s.polarizer.WaitSettled(0); err != nil {
		return err
	}
	return s.retarder.WaitSettled(0)
}
