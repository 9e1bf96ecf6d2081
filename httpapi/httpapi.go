/*Package httpapi exposes the rig over HTTP for remote operation and
monitoring.

Routes are JSON in, JSON out, except frame and dataset retrieval which
stream FITS.  One sweep may run at a time; starting a second while the
first is in flight is rejected.
*/
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/oplab/gonio/camera"
	"github.com/oplab/gonio/dataset"
	"github.com/oplab/gonio/imgrec"
	"github.com/oplab/gonio/scan"
	"github.com/oplab/gonio/util"

	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
)

// FloatT is a struct with a single float64 field, used for JSON requests and responses
type FloatT struct {
	F64 float64 `json:"f64"`
}

// BoolT is a struct with a single bool field
type BoolT struct {
	Bool bool `json:"bool"`
}

// IntT is a struct with a single int field
type IntT struct {
	Int int `json:"int"`
}

// StrT is a struct with a single string field
type StrT struct {
	Str string `json:"str"`
}

// Axis is the motion surface exposed per arm
type Axis interface {
	MoveTo(float64) error
	WaitSettled(time.Duration) error
	CurrentPosition() (float64, error)
}

// Light is the illuminator surface
type Light interface {
	SetEmission(bool) error
	GetEmission() (bool, error)
	SetPower(float64) error
	GetPower() (float64, error)
}

// SweepStatus reports the state of the background sweep
type SweepStatus struct {
	Running bool   `json:"running"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Error   string `json:"error,omitempty"`
}

// Server routes HTTP requests to the rig devices
type Server struct {
	axes     map[string]Axis
	light    Light
	cam      camera.FrameGrabber
	sweeper  *scan.Controller
	recorder *imgrec.Recorder
	log      zerolog.Logger

	mu      sync.Mutex
	status  SweepStatus
	lastDS  dataset.Dataset
	settle  time.Duration
	running bool
}

// NewServer returns a server over the given devices.  light, sweeper, and
// recorder may be nil; their routes then respond 404.
func NewServer(axes map[string]Axis, light Light, cam camera.FrameGrabber, sweeper *scan.Controller, recorder *imgrec.Recorder, log zerolog.Logger) *Server {
	return &Server{
		axes:     axes,
		light:    light,
		cam:      cam,
		sweeper:  sweeper,
		recorder: recorder,
		log:      log,
		settle:   scan.DefaultSettleTimeout,
	}
}

// Routes builds the chi router for the server
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/axis/{axis}/pos", s.getPos)
	r.Post("/axis/{axis}/pos", s.setPos)
	r.Get("/axis/{axis}/limits", s.getLimits)
	if s.light != nil {
		r.Get("/light/emission", s.getEmission)
		r.Post("/light/emission", s.setEmission)
		r.Get("/light/power", s.getPower)
		r.Post("/light/power", s.setPower)
	}
	if s.cam != nil {
		r.Post("/camera/config", s.configureCamera)
		r.Get("/camera/frame", s.captureFrame)
	}
	if s.sweeper != nil {
		r.Post("/sweep/start", s.startSweep)
		r.Get("/sweep/status", s.sweepStatus)
		r.Get("/sweep/dataset", s.sweepDataset)
	}
	if s.recorder != nil {
		r.Get("/autowrite/root", s.getRecRoot)
		r.Post("/autowrite/root", s.setRecRoot)
		r.Get("/autowrite/prefix", s.getRecPrefix)
		r.Post("/autowrite/prefix", s.setRecPrefix)
	}
	return r
}

func (s *Server) axis(w http.ResponseWriter, r *http.Request) (Axis, bool) {
	name := chi.URLParam(r, "axis")
	ax, ok := s.axes[name]
	if !ok {
		http.Error(w, "no axis named "+name, http.StatusNotFound)
		return nil, false
	}
	return ax, true
}

func (s *Server) getPos(w http.ResponseWriter, r *http.Request) {
	ax, ok := s.axis(w, r)
	if !ok {
		return
	}
	pos, err := ax.CurrentPosition()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, FloatT{F64: pos})
}

func (s *Server) getLimits(w http.ResponseWriter, r *http.Request) {
	ax, ok := s.axis(w, r)
	if !ok {
		return
	}
	lim, ok := ax.(interface{ TravelLimits() util.Limiter })
	if !ok {
		http.Error(w, "axis does not expose travel limits", http.StatusNotFound)
		return
	}
	respondJSON(w, lim.TravelLimits())
}

func (s *Server) setPos(w http.ResponseWriter, r *http.Request) {
	ax, ok := s.axis(w, r)
	if !ok {
		return
	}
	f := FloatT{}
	err := json.NewDecoder(r.Body).Decode(&f)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = ax.MoveTo(f.F64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = ax.WaitSettled(s.settle)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getEmission(w http.ResponseWriter, r *http.Request) {
	on, err := s.light.GetEmission()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, BoolT{Bool: on})
}

func (s *Server) setEmission(w http.ResponseWriter, r *http.Request) {
	b := BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = s.light.SetEmission(b.Bool)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getPower(w http.ResponseWriter, r *http.Request) {
	p, err := s.light.GetPower()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, FloatT{F64: p})
}

func (s *Server) setPower(w http.ResponseWriter, r *http.Request) {
	f := FloatT{}
	err := json.NewDecoder(r.Body).Decode(&f)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = s.light.SetPower(f.F64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// cameraConfig is the JSON body for POST /camera/config
type cameraConfig struct {
	ExposureS float64 `json:"exposure_s"`
	Gain      float64 `json:"gain"`
}

func (s *Server) configureCamera(w http.ResponseWriter, r *http.Request) {
	cfg := cameraConfig{}
	err := json.NewDecoder(r.Body).Decode(&cfg)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	exp := time.Duration(cfg.ExposureS * float64(time.Second))
	err = s.cam.Configure(exp, cfg.Gain)
	if err != nil {
		if _, oor := err.(camera.OutOfRangeError); oor {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) captureFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := s.cam.Capture()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ds := dataset.Dataset{{Frame: frame}}
	w.Header().Set("Content-Type", "image/fits")
	w.Header().Set("Content-Disposition", "attachment; filename=frame.fits")
	err = ds.Encode(w)
	if err != nil {
		s.log.Error().Err(err).Msg("streaming frame failed")
	}
}

func (s *Server) startSweep(w http.ResponseWriter, r *http.Request) {
	cfg := scan.Config{}
	err := json.NewDecoder(r.Body).Decode(&cfg)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		http.Error(w, "a sweep is already running", http.StatusConflict)
		return
	}
	s.running = true
	s.status = SweepStatus{Running: true, Total: cfg.Steps()}
	s.mu.Unlock()

	s.sweeper.OnStep = func(done, total int) {
		s.mu.Lock()
		s.status.Done = done
		s.mu.Unlock()
	}
	go func() {
		ds, err := s.sweeper.Run(context.Background(), cfg)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.running = false
		s.status.Running = false
		s.lastDS = ds
		if err != nil {
			s.status.Error = err.Error()
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) sweepStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	respondJSON(w, st)
}

func (s *Server) sweepDataset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ds := s.lastDS
	running := s.running
	s.mu.Unlock()
	if running {
		http.Error(w, "sweep still running", http.StatusConflict)
		return
	}
	if len(ds) == 0 {
		http.Error(w, "no dataset available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/fits")
	w.Header().Set("Content-Disposition", "attachment; filename=sweep.fits")
	err := ds.Encode(w)
	if err != nil {
		s.log.Error().Err(err).Msg("streaming dataset failed")
	}
}

func (s *Server) getRecRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, StrT{Str: s.recorder.Root})
}

func (s *Server) setRecRoot(w http.ResponseWriter, r *http.Request) {
	str := StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.recorder.Root = str.Str
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getRecPrefix(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, StrT{Str: s.recorder.Prefix})
}

func (s *Server) setRecPrefix(w http.ResponseWriter, r *http.Request) {
	str := StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.recorder.Prefix = str.Str
	s.recorder.Incr()
	w.WriteHeader(http.StatusOK)
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
