package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/oplab/gonio/andor"
	"github.com/oplab/gonio/camera"
	"github.com/oplab/gonio/httpapi"
	"github.com/oplab/gonio/imgrec"
	"github.com/oplab/gonio/motion"
	"github.com/oplab/gonio/newport"
	"github.com/oplab/gonio/nkt"
	"github.com/oplab/gonio/polarization"
	"github.com/oplab/gonio/scan"
	"github.com/oplab/gonio/util"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog"
	"github.com/theckman/yacspin"
)

// Minmax holds a min and max value
type Minmax struct {
	Min float64 `yaml:"Min"`
	Max float64 `yaml:"Max"`
}

// AxisSetup binds one rig role to an ESP300 axis channel with travel limits
type AxisSetup struct {
	// Channel is the controller axis number, "1".."3"
	Channel string `yaml:"Channel"`

	Limits Minmax `yaml:"Limits"`
}

// MotionSetup configures the ESP300 and the four axis roles on it
type MotionSetup struct {
	// Addr holds the network or filesystem address of the controller,
	// e.g. 192.168.100.123:2006 for a port on a terminal server,
	// or /dev/ttyS4 for an RS232 device on a serial cable
	Addr string `yaml:"Addr"`

	// Serial determines if the connection is serial/RS232 (true) or TCP (false)
	Serial bool `yaml:"Serial"`

	// StageAddr is the controller carrying the polarizer and retarder
	// motors.  An ESP300 has three channels, so the four rig axes span two
	// controllers.  Leave empty to share Addr.
	StageAddr   string `yaml:"StageAddr"`
	StageSerial bool   `yaml:"StageSerial"`

	// Velocity, if nonzero, is programmed onto every axis at startup,
	// degrees per second
	Velocity float64 `yaml:"Velocity"`

	Incidence   AxisSetup `yaml:"Incidence"`
	Observation AxisSetup `yaml:"Observation"`
	Polarizer   AxisSetup `yaml:"Polarizer"`
	Retarder    AxisSetup `yaml:"Retarder"`
}

// LightSetup configures the SuperK source
type LightSetup struct {
	Addr   string `yaml:"Addr"`
	Serial bool   `yaml:"Serial"`

	// Power is the emission power in percent, set at startup
	Power float64 `yaml:"Power"`
}

// CameraSetup configures the Andor camera
type CameraSetup struct {
	// Index is the SDK camera index, typically 0 for the real camera
	Index int `yaml:"Index"`

	ExposureMs float64 `yaml:"ExposureMs"`
	Gain       float64 `yaml:"Gain"`
}

// SweepSetup is the sweep configuration for the run command
type SweepSetup struct {
	Incidence     []float64 `yaml:"Incidence"`
	Observation   []float64 `yaml:"Observation"`
	Polarizations []int     `yaml:"Polarizations"`

	SettleTimeoutS float64 `yaml:"SettleTimeoutS"`

	// Output is the FITS container the completed sweep is written to
	Output string `yaml:"Output"`
}

// Config holds the initialization parameters for the rig
type Config struct {
	// Addr is the address the serve command listens at
	Addr string `yaml:"Addr"`

	// Mock replaces every device with a software simulation
	Mock bool `yaml:"Mock"`

	// DataRoot, if set, also saves each record as its own FITS file there
	DataRoot string `yaml:"DataRoot"`

	// Prefix is the filename prefix for per-record saves
	Prefix string `yaml:"Prefix"`

	Motion MotionSetup `yaml:"Motion"`
	Light  LightSetup  `yaml:"Light"`
	Camera CameraSetup `yaml:"Camera"`
	Sweep  SweepSetup  `yaml:"Sweep"`
}

// DefaultConfig returns the configuration mkconf writes before the user edits it
func DefaultConfig() Config {
	return Config{
		Addr: ":8000",
		Mock: true,
		Motion: MotionSetup{
			Addr:        "/dev/ttyS0",
			Serial:      true,
			StageAddr:   "/dev/ttyS1",
			StageSerial: true,
			Velocity:    20,
			Incidence:   AxisSetup{Channel: "1", Limits: Minmax{Min: -5, Max: 95}},
			Observation: AxisSetup{Channel: "2", Limits: Minmax{Min: -5, Max: 175}},
			Polarizer:   AxisSetup{Channel: "1", Limits: Minmax{Min: -180, Max: 180}},
			Retarder:    AxisSetup{Channel: "2", Limits: Minmax{Min: -180, Max: 180}},
		},
		Light:  LightSetup{Addr: "/dev/ttyUSB0", Serial: true, Power: 50},
		Camera: CameraSetup{Index: 0, ExposureMs: 10, Gain: 0},
		Sweep: SweepSetup{
			Incidence:     []float64{0, 10, 20},
			Observation:   []float64{0, 45, 90},
			Polarizations: []int{0, 1, 2, 3, 4, 5},
			Output:        "sweep.fits",
		},
	}
}

// rig holds the constructed device handles
type rig struct {
	incidence   *motion.Axis
	observation *motion.Axis
	polarizer   *motion.Axis
	retarder    *motion.Axis
	stage       *polarization.Stage
	light       httpapi.Light
	cam         camera.FrameGrabber

	closers []func() error
}

func (r *rig) Close() {
	for _, c := range r.closers {
		c()
	}
}

func limits(mm Minmax) util.Limiter {
	return util.Limiter{Min: mm.Min, Max: mm.Max}
}

// BuildRig constructs the device handles from the configuration.  With
// c.Mock, everything is simulated and no hardware is touched.
func BuildRig(c Config) (*rig, error) {
	r := &rig{}
	var motionCtl motion.Controller
	var stageCtl motion.Controller
	if c.Mock {
		motionCtl = newport.NewMockESP300()
		stageCtl = newport.NewMockESP300()
		r.light = nkt.NewMockSuperK()
		r.cam = camera.NewMock()
	} else {
		motionCtl = newport.NewESP300(c.Motion.Addr, c.Motion.Serial)
		if c.Motion.StageAddr != "" {
			stageCtl = newport.NewESP300(c.Motion.StageAddr, c.Motion.StageSerial)
		} else {
			stageCtl = motionCtl
		}
		r.light = nkt.NewSuperK(c.Light.Addr, c.Light.Serial)
		err := andor.InitializeLibrary()
		if err != nil {
			return nil, err
		}
		cam, err := andor.Open(c.Camera.Index)
		if err != nil {
			andor.FinalizeLibrary()
			return nil, err
		}
		r.cam = cam
		r.closers = append(r.closers, cam.Close, func() error {
			andor.FinalizeLibrary()
			return nil
		})
	}
	r.incidence = motion.NewAxis(motionCtl, c.Motion.Incidence.Channel, limits(c.Motion.Incidence.Limits), motion.DefaultSettle)
	r.observation = motion.NewAxis(motionCtl, c.Motion.Observation.Channel, limits(c.Motion.Observation.Limits), motion.DefaultSettle)
	r.polarizer = motion.NewAxis(stageCtl, c.Motion.Polarizer.Channel, limits(c.Motion.Polarizer.Limits), motion.DefaultSettle)
	r.retarder = motion.NewAxis(stageCtl, c.Motion.Retarder.Channel, limits(c.Motion.Retarder.Limits), motion.DefaultSettle)
	r.stage = polarization.NewStage(r.polarizer, r.retarder, nil)

	if v := c.Motion.Velocity; v != 0 {
		type velocitySetter interface {
			SetVelocity(string, float64) error
		}
		channels := []struct {
			ctl motion.Controller
			ch  string
		}{
			{motionCtl, c.Motion.Incidence.Channel},
			{motionCtl, c.Motion.Observation.Channel},
			{stageCtl, c.Motion.Polarizer.Channel},
			{stageCtl, c.Motion.Retarder.Channel},
		}
		for _, cc := range channels {
			if vs, ok := cc.ctl.(velocitySetter); ok {
				err := vs.SetVelocity(cc.ch, v)
				if err != nil {
					r.Close()
					return nil, err
				}
			}
		}
	}

	err := r.cam.Configure(time.Duration(c.Camera.ExposureMs*float64(time.Millisecond)), c.Camera.Gain)
	if err != nil {
		r.Close()
		return nil, err
	}
	err = r.light.SetPower(c.Light.Power)
	if err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func logger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// RunSweep executes the configured sweep and persists the dataset
func RunSweep(c Config) error {
	r, err := BuildRig(c)
	if err != nil {
		return err
	}
	defer r.Close()
	log := logger()
	ctl := scan.NewController(r.incidence, r.observation, r.stage, r.cam, r.light, log)

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:     100 * time.Millisecond,
		CharSet:       yacspin.CharSets[14],
		Suffix:        " sweeping",
		StopCharacter: "done",
	})
	if err == nil {
		spinner.Start()
		ctl.OnStep = func(done, total int) {
			spinner.Message(fmt.Sprintf("%d/%d records", done, total))
		}
		defer spinner.Stop()
	}

	cfg := scan.Config{
		Incidence:     c.Sweep.Incidence,
		Observation:   c.Sweep.Observation,
		Polarizations: c.Sweep.Polarizations,
		SettleTimeout: util.SecsToDuration(c.Sweep.SettleTimeoutS),
	}
	ds, runErr := ctl.Run(context.Background(), cfg)
	if len(ds) == 0 {
		return runErr
	}
	out := c.Sweep.Output
	if out == "" {
		out = "sweep.fits"
	}
	err = ds.Write(out)
	if err != nil {
		return err
	}
	log.Info().Str("path", out).Int("records", len(ds)).Msg("dataset written")
	if c.DataRoot != "" {
		rec := imgrec.Recorder{Root: c.DataRoot, Prefix: c.Prefix}
		rec.Incr()
		for _, record := range ds {
			_, err = rec.SaveRecord(record)
			if err != nil {
				return err
			}
		}
	}
	// a partial dataset is persisted above for diagnostics, but the sweep
	// still failed
	return runErr
}

// Serve exposes the rig over HTTP at c.Addr
func Serve(c Config) error {
	r, err := BuildRig(c)
	if err != nil {
		return err
	}
	defer r.Close()
	log := logger()
	sweeper := scan.NewController(r.incidence, r.observation, r.stage, r.cam, r.light, log)
	recorder := &imgrec.Recorder{Root: c.DataRoot, Prefix: c.Prefix, Enabled: c.DataRoot != ""}
	recorder.Incr()
	axes := map[string]httpapi.Axis{
		"incidence":   r.incidence,
		"observation": r.observation,
		"polarizer":   r.polarizer,
		"retarder":    r.retarder,
	}
	srv := httpapi.NewServer(axes, r.light, r.cam, sweeper, recorder, log)
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	root.Mount("/", srv.Routes())
	log.Info().Str("addr", c.Addr).Msg("listening for requests")
	return http.ListenAndServe(c.Addr, root)
}
