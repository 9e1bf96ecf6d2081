package polarization_test

import (
	"errors"
	"testing"
	"time"

	"github.com/oplab/gonio/motion"
	"github.com/oplab/gonio/newport"
	"github.com/oplab/gonio/polarization"
	"github.com/oplab/gonio/util"
)

func mockAxis(t *testing.T, ctl *newport.MockESP300, name string) *motion.Axis {
	t.Helper()
	ctl.SetVelocity(name, 100000)
	return motion.NewAxis(ctl, name, util.Limiter{Min: -410, Max: 410}, motion.SettleConfig{
		Tolerance:    0.05,
		PollInterval: time.Millisecond,
		Timeout:      2 * time.Second,
	})
}

func TestSetConfigurationLandsBothAxes(t *testing.T) {
	ctl := newport.NewMockESP300()
	pol := mockAxis(t, ctl, "1")
	ret := mockAxis(t, ctl, "2")
	stage := polarization.NewStage(pol, ret, nil)

	// right-circular: polarizer 0, wave plate 45
	if err := stage.SetConfiguration(4); err != nil {
		t.Fatal(err)
	}
	p, _ := pol.CurrentPosition()
	r, _ := ret.CurrentPosition()
	if p != 0 || r != 45 {
		t.Errorf("expected (0, 45), got (%f, %f)", p, r)
	}
}

func TestSetConfigurationUnknownIndexMovesNothing(t *testing.T) {
	ctl := newport.NewMockESP300()
	pol := mockAxis(t, ctl, "1")
	ret := mockAxis(t, ctl, "2")
	stage := polarization.NewStage(pol, ret, nil)

	err := stage.SetConfiguration(stage.Count())
	var unk polarization.UnknownConfigurationError
	if !errors.As(err, &unk) {
		t.Fatalf("expected UnknownConfigurationError, got %v", err)
	}
	p, _ := pol.CurrentPosition()
	r, _ := ret.CurrentPosition()
	if p != 0 || r != 0 {
		t.Errorf("axes moved on invalid configuration: (%f, %f)", p, r)
	}

	if err := stage.SetConfiguration(-1); !errors.As(err, &unk) {
		t.Errorf("expected UnknownConfigurationError for negative index, got %v", err)
	}
}

func TestCustomConfigurations(t *testing.T) {
	ctl := newport.NewMockESP300()
	stage := polarization.NewStage(mockAxis(t, ctl, "1"), mockAxis(t, ctl, "2"),
		[]polarization.Configuration{{Name: "only", Polarizer: 10, Retarder: 55}})
	if stage.Count() != 1 {
		t.Fatalf("expected 1 configuration, got %d", stage.Count())
	}
	cfg, err := stage.Configuration(0)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "only" {
		t.Errorf("expected configuration 'only', got %q", cfg.Name)
	}
}
