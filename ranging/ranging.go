// Package ranging turns apparent marker widths into distances using the
// pinhole relation width_in_image = focal_length * known_width / distance.
package ranging

import (
	"errors"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// ErrNotCalibrated is returned by Estimate while samples are still being collected.
var ErrNotCalibrated = errors.New("calibration not complete")

// Params are fixed at startup.
type Params struct {
	KnownDistance float64 // D0, calibration reference distance
	KnownWidth    float64 // W, physical marker width, same unit as D0
	SampleCount   int
	ToleranceMin  float64
	ToleranceMax  float64
}

// DefaultParams returns the reference bench setup: 0.5 cm dot at 50 cm,
// accepted between 190 and 210 cm.
func DefaultParams() Params {
	return Params{
		KnownDistance: 50.0,
		KnownWidth:    0.5,
		SampleCount:   5,
		ToleranceMin:  190,
		ToleranceMax:  210,
	}
}

// FocalLength derives the focal length model from one observation at the
// known distance.
func FocalLength(knownDistance, knownWidth, widthInImage float64) float64 {
	return widthInImage * knownDistance / knownWidth
}

// Distance inverts FocalLength. ok is false when widthInImage is 0.
func Distance(focalLength, knownWidth, widthInImage float64) (distance float64, ok bool) {
	if widthInImage == 0 {
		return 0, false
	}
	return knownWidth * focalLength / widthInImage, true
}

// WithinTolerance reports whether d lies in the closed band [lo, hi].
func WithinTolerance(d, lo, hi float64) bool {
	return lo <= d && d <= hi
}

// Phase of the calibration state machine.
type Phase int

const (
	PhaseCalibrating Phase = iota
	PhaseEstimating
)

func (p Phase) String() string {
	switch p {
	case PhaseCalibrating:
		return "calibrating"
	case PhaseEstimating:
		return "estimating"
	default:
		return "unknown"
	}
}

// Reading is one distance estimate. Value is meaningful only when Defined.
type Reading struct {
	Value           float64
	Defined         bool
	WithinTolerance bool
}

// State accumulates focal-length samples until SampleCount is reached and
// is frozen afterwards. The frame loop is the only writer; the mutex lets
// status surfaces read it from other goroutines.
type State struct {
	mu       sync.RWMutex
	params   Params
	samples  []float64
	complete bool
	focal    float64
}

func NewState(p Params) *State {
	return &State{
		params:  p,
		samples: make([]float64, 0, p.SampleCount),
	}
}

// Params returns the constants the state was built with.
func (s *State) Params() Params {
	return s.params
}

// Add records one calibration observation. It returns true only for the
// sample that completes calibration; once complete it is a no-op.
func (s *State) Add(widthInImage float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.complete {
		return false
	}
	s.samples = append(s.samples, FocalLength(s.params.KnownDistance, s.params.KnownWidth, widthInImage))
	if len(s.samples) < s.params.SampleCount {
		return false
	}
	// mean is cached here; the sample set never changes again
	s.focal = stat.Mean(s.samples, nil)
	s.complete = true
	return true
}

func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.complete {
		return PhaseEstimating
	}
	return PhaseCalibrating
}

// Samples returns a copy of the collected focal-length samples.
func (s *State) Samples() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.samples))
	copy(out, s.samples)
	return out
}

// FocalLength returns the resolved focal length once calibration is complete.
func (s *State) FocalLength() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focal, s.complete
}

// Estimate converts an apparent width into a Reading. A zero width yields
// an undefined Reading, not an error.
func (s *State) Estimate(widthInImage float64) (Reading, error) {
	focal, ok := s.FocalLength()
	if !ok {
		return Reading{}, ErrNotCalibrated
	}
	d, ok := Distance(focal, s.params.KnownWidth, widthInImage)
	if !ok {
		return Reading{}, nil
	}
	return Reading{
		Value:           d,
		Defined:         true,
		WithinTolerance: WithinTolerance(d, s.params.ToleranceMin, s.params.ToleranceMax),
	}, nil
}
