/*Package scan implements the goniometric sweep that drives the rig.

The sweep enumerates the Cartesian product of incidence angles, observation
angles, and polarization configurations in strict nested order (incidence
outer, observation middle, polarization inner).  Downstream analysis indexes
records by position in the sequence as well as by angle, so the ordering is
part of the output contract.

Any device error aborts the sweep immediately.  The caller receives the
error together with the partial dataset accumulated so far, which it may
persist for diagnostics.
*/
package scan

import (
	"context"
	"errors"
	"time"

	"github.com/oplab/gonio/camera"
	"github.com/oplab/gonio/dataset"

	"github.com/rs/zerolog"
)

// Axis is the motion capability the sweep needs from an arm
type Axis interface {
	// MoveTo commands an absolute move in degrees
	MoveTo(float64) error

	// WaitSettled blocks until the axis reports in position or the
	// timeout elapses
	WaitSettled(time.Duration) error
}

// Stage selects polarization configurations
type Stage interface {
	SetConfiguration(int) error
}

// Illuminator switches the light source.  Open loop; errors are only
// transport failures.
type Illuminator interface {
	SetEmission(bool) error
}

// DefaultSettleTimeout bounds each axis settle wait when Config leaves
// SettleTimeout zero
const DefaultSettleTimeout = 60 * time.Second

// Config describes one sweep.  The three slices are enumerated in the order
// given; none may be empty.
type Config struct {
	// Incidence is the ordered incidence angle sequence, degrees
	Incidence []float64

	// Observation is the ordered observation angle sequence, degrees
	Observation []float64

	// Polarizations is the ordered polarization configuration index sequence
	Polarizations []int

	// SettleTimeout bounds each WaitSettled call, DefaultSettleTimeout if zero
	SettleTimeout time.Duration
}

// Steps is the record count a completed sweep produces
func (c Config) Steps() int {
	return len(c.Incidence) * len(c.Observation) * len(c.Polarizations)
}

func (c Config) validate() error {
	if len(c.Incidence) == 0 || len(c.Observation) == 0 || len(c.Polarizations) == 0 {
		return errors.New("scan: incidence, observation, and polarization sequences must all be non-empty")
	}
	return nil
}

// Controller composes the rig's devices into a sweep.  One Controller
// drives one set of device handles; do not share the handles with another
// concurrent Controller.
type Controller struct {
	incidence   Axis
	observation Axis
	stage       Stage
	light       Illuminator
	cam         camera.FrameGrabber
	log         zerolog.Logger

	// OnStep, if not nil, is called after each record is appended with the
	// number of completed steps and the total
	OnStep func(done, total int)
}

// NewController returns a sweep controller over the given devices.
// light may be nil for rigs where the source is switched manually.
func NewController(incidence, observation Axis, stage Stage, cam camera.FrameGrabber, light Illuminator, log zerolog.Logger) *Controller {
	return &Controller{
		incidence:   incidence,
		observation: observation,
		stage:       stage,
		light:       light,
		cam:         cam,
		log:         log,
	}
}

// Run executes the sweep.  The returned dataset always contains exactly the
// records completed before any failure, in order.  ctx cancels between
// steps; a cancelled sweep returns ctx.Err() with the partial dataset.
func (c *Controller) Run(ctx context.Context, cfg Config) (dataset.Dataset, error) {
	err := cfg.validate()
	if err != nil {
		return nil, err
	}
	settle := cfg.SettleTimeout
	if settle == 0 {
		settle = DefaultSettleTimeout
	}
	total := cfg.Steps()
	c.log.Info().
		Int("steps", total).
		Int("incidence", len(cfg.Incidence)).
		Int("observation", len(cfg.Observation)).
		Int("polarizations", len(cfg.Polarizations)).
		Msg("sweep started")

	if c.light != nil {
		err = c.light.SetEmission(true)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := c.light.SetEmission(false); err != nil {
				c.log.Error().Err(err).Msg("could not disable illumination after sweep")
			}
		}()
	}

	var ds dataset.Dataset
	for _, inc := range cfg.Incidence {
		err = c.moveSettled(c.incidence, inc, settle)
		if err != nil {
			return ds, err
		}
		for _, obs := range cfg.Observation {
			err = c.moveSettled(c.observation, obs, settle)
			if err != nil {
				return ds, err
			}
			for _, pol := range cfg.Polarizations {
				err = ctx.Err()
				if err != nil {
					return ds, err
				}
				err = c.stage.SetConfiguration(pol)
				if err != nil {
					return ds, err
				}
				frame, err := c.cam.Capture()
				if err != nil {
					c.log.Error().Err(err).
						Float64("incidence", inc).
						Float64("observation", obs).
						Int("polarization", pol).
						Msg("sweep aborted")
					return ds, err
				}
				ds = append(ds, dataset.Record{
					Incidence:    inc,
					Observation:  obs,
					Polarization: pol,
					Frame:        frame,
				})
				c.log.Debug().
					Float64("incidence", inc).
					Float64("observation", obs).
					Int("polarization", pol).
					Int("record", len(ds)).
					Msg("record captured")
				if c.OnStep != nil {
					c.OnStep(len(ds), total)
				}
			}
		}
	}
	c.log.Info().Int("records", len(ds)).Msg("sweep complete")
	return ds, nil
}

func (c *Controller) moveSettled(ax Axis, angle float64, timeout time.Duration) error {
	err := ax.MoveTo(angle)
	if err != nil {
		return err
	}
	return ax.WaitSettled(timeout)
}
