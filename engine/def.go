package engine

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

const UNREGISTERED = 0x0001
const REGISTERED = 0x0002
const IDLE = 0x0003
const BUSY = 0x0004

var (
	ErrNotRegistered = errors.New("detector not registered")
	ErrNotConfigured = errors.New("detector params not loaded")
	ErrBusy          = errors.New("detector is busy")
)

// HueBand is one inclusive HSV interval on OpenCV's scale
// (H 0-180, S and V 0-255). Red wraps around hue 0, so it takes two bands.
type HueBand struct {
	Name   string  `yaml:"name" json:"name"`
	HueMin float64 `yaml:"hueMin" json:"hueMin"`
	HueMax float64 `yaml:"hueMax" json:"hueMax"`
	SatMin float64 `yaml:"satMin" json:"satMin"`
	SatMax float64 `yaml:"satMax" json:"satMax"`
	ValMin float64 `yaml:"valMin" json:"valMin"`
	ValMax float64 `yaml:"valMax" json:"valMax"`
}

// RedLow covers reds just above hue 0.
var RedLow = HueBand{Name: "red-low", HueMin: 0, HueMax: 10, SatMin: 150, SatMax: 255, ValMin: 150, ValMax: 255}

// RedHigh covers reds just below the hue maximum.
var RedHigh = HueBand{Name: "red-high", HueMin: 170, HueMax: 180, SatMin: 150, SatMax: 255, ValMin: 150, ValMax: 255}

func (b HueBand) Lower() gocv.Scalar {
	return gocv.NewScalar(b.HueMin, b.SatMin, b.ValMin, 0)
}

func (b HueBand) Upper() gocv.Scalar {
	return gocv.NewScalar(b.HueMax, b.SatMax, b.ValMax, 0)
}

// Contains reports whether an HSV triple falls inside the band, bounds included.
func (b HueBand) Contains(h, s, v float64) bool {
	return h >= b.HueMin && h <= b.HueMax &&
		s >= b.SatMin && s <= b.SatMax &&
		v >= b.ValMin && v <= b.ValMax
}

func (b HueBand) validate() error {
	if b.HueMin > b.HueMax || b.SatMin > b.SatMax || b.ValMin > b.ValMax {
		return fmt.Errorf("hue band %q: min exceeds max", b.Name)
	}
	if b.HueMin < 0 || b.HueMax > 180 {
		return fmt.Errorf("hue band %q: hue outside 0-180", b.Name)
	}
	if b.SatMin < 0 || b.SatMax > 255 || b.ValMin < 0 || b.ValMax > 255 {
		return fmt.Errorf("hue band %q: saturation/value outside 0-255", b.Name)
	}
	return nil
}

// Params tune segmentation and shape filtering.
type Params struct {
	HueBands        []HueBand `yaml:"hueBands" json:"hueBands"`
	BlurKernel      int       `yaml:"blurKernel" json:"blurKernel"`
	MorphKernel     int       `yaml:"morphKernel" json:"morphKernel"`
	MorphIterations int       `yaml:"morphIterations" json:"morphIterations"`

	MinArea        float64 `yaml:"minArea" json:"minArea"`               // pixels², strict lower bound
	CircularityMin float64 `yaml:"circularityMin" json:"circularityMin"` // 4πA/P², strict lower bound
	AspectMin      float64 `yaml:"aspectMin" json:"aspectMin"`           // w/h, open interval
	AspectMax      float64 `yaml:"aspectMax" json:"aspectMax"`
}

// DefaultParams returns the settings tuned for a red laser dot.
func DefaultParams() Params {
	return Params{
		HueBands:        []HueBand{RedLow, RedHigh},
		BlurKernel:      5,
		MorphKernel:     3,
		MorphIterations: 2,

		MinArea:        50,
		CircularityMin: 0.7,
		AspectMin:      0.8,
		AspectMax:      1.2,
	}
}

func (p Params) Validate() error {
	if len(p.HueBands) == 0 {
		return errors.New("at least one hue band is required")
	}
	for _, b := range p.HueBands {
		if err := b.validate(); err != nil {
			return err
		}
	}
	if p.BlurKernel < 1 || p.BlurKernel%2 == 0 {
		return fmt.Errorf("blur kernel must be odd and positive, got %d", p.BlurKernel)
	}
	if p.MorphKernel < 1 {
		return fmt.Errorf("morph kernel must be positive, got %d", p.MorphKernel)
	}
	if p.MorphIterations < 0 {
		return fmt.Errorf("morph iterations must not be negative, got %d", p.MorphIterations)
	}
	if p.MinArea < 0 {
		return fmt.Errorf("min area must not be negative, got %v", p.MinArea)
	}
	if p.CircularityMin < 0 || p.CircularityMin > 1 {
		return fmt.Errorf("circularity threshold must be between 0 and 1, got %v", p.CircularityMin)
	}
	if p.AspectMin <= 0 || p.AspectMin >= p.AspectMax {
		return fmt.Errorf("aspect band (%v, %v) is empty", p.AspectMin, p.AspectMax)
	}
	return nil
}
