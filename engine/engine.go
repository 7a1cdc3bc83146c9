package engine

import (
	"fmt"
	"image"

	iface "LaserRange/interface"
	"LaserRange/logger"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Detector runs the segment → extract → classify pipeline on one frame at
// a time and owns the morphology kernel between frames.
type Detector struct {
	params Params
	kernel gocv.Mat
	State  int
}

func (d *Detector) New() bool {
	d.State = REGISTERED
	return true
}

// Configure validates params and allocates the structuring element.
func (d *Detector) Configure(p Params) error {
	if d.State == UNREGISTERED || d.State == 0 {
		return ErrNotRegistered
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid detection params: %w", err)
	}
	if d.State != REGISTERED {
		_ = d.kernel.Close()
	}
	d.params = p
	d.kernel = gocv.GetStructuringElement(gocv.MorphRect, image.Pt(p.MorphKernel, p.MorphKernel))
	d.State = IDLE
	logger.Log().Info("detector configured",
		zap.Int("hueBands", len(p.HueBands)),
		zap.Float64("minArea", p.MinArea),
		zap.Float64("circularityMin", p.CircularityMin),
		zap.Float64("aspectMin", p.AspectMin),
		zap.Float64("aspectMax", p.AspectMax))
	return nil
}

func (d *Detector) CheckConfig() Params {
	return d.params
}

// Process returns the frame's candidate, if any.
func (d *Detector) Process(frame gocv.Mat) (iface.Candidate, bool, error) {
	switch d.State {
	case 0, UNREGISTERED:
		return iface.Candidate{}, false, ErrNotRegistered
	case REGISTERED:
		return iface.Candidate{}, false, ErrNotConfigured
	case BUSY:
		return iface.Candidate{}, false, ErrBusy
	}
	d.State = BUSY
	defer func() { d.State = IDLE }()

	mask := Segment(frame, d.params, d.kernel)
	defer mask.Close()
	c, ok := Classify(Extract(mask), d.params)
	return c, ok, nil
}

// Detect implements iface.Backend; lifecycle errors are logged and read as "no candidate".
func (d *Detector) Detect(frame gocv.Mat) (iface.Candidate, bool) {
	c, ok, err := d.Process(frame)
	if err != nil {
		logger.Log().Error("detect skipped", zap.Error(err))
		return iface.Candidate{}, false
	}
	return c, ok
}

func (d *Detector) Destroy() {
	if d.State == IDLE || d.State == BUSY {
		_ = d.kernel.Close()
	}
	d.params = Params{}
	d.State = UNREGISTERED
}
