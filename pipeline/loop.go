// Package pipeline drives capture → detection → calibration/estimation →
// annotation, one frame at a time.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LaserRange/engine"
	iface "LaserRange/interface"
	"LaserRange/logger"
	"LaserRange/monitor"
	"LaserRange/ranging"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Calibrated carries the one-time calibration result.
type Calibrated struct {
	FocalLength float64
	Samples     []float64
}

// Loop is the frame loop. It is not safe to call Run twice concurrently;
// Status may be called from any goroutine.
type Loop struct {
	src     iface.FrameSource
	backend iface.Backend
	sink    iface.FrameSink
	state   *ranging.State
	log     *zap.Logger

	// Annotate draws the candidate and reading; defaults to engine.Annotate.
	Annotate func(frame *gocv.Mat, c iface.Candidate, reading *ranging.Reading)
	// OnCalibrated runs once, on the loop goroutine, when the last sample lands.
	OnCalibrated func(Calibrated)

	mu     sync.RWMutex
	status iface.Status
}

func New(src iface.FrameSource, backend iface.Backend, sink iface.FrameSink, state *ranging.State, instanceID string) *Loop {
	return &Loop{
		src:      src,
		backend:  backend,
		sink:     sink,
		state:    state,
		log:      logger.Named("pipeline"),
		Annotate: engine.Annotate,
		status: iface.Status{
			InstanceID:   instanceID,
			Phase:        state.Phase().String(),
			SampleTarget: state.Params().SampleCount,
		},
	}
}

// Run processes frames until the source fails, the sink asks to quit or
// ctx is cancelled. Cancellation is checked after each frame, so a
// blocked Read is never interrupted. A source failure is returned wrapped.
func (l *Loop) Run(ctx context.Context) error {
	frame := gocv.NewMat()
	defer frame.Close()

	l.log.Info("frame loop started", zap.String("phase", l.state.Phase().String()))
	for {
		if err := l.src.Read(&frame); err != nil {
			l.log.Error("capture failed", zap.Error(err))
			return fmt.Errorf("read frame: %w", err)
		}
		if l.Step(&frame) {
			l.log.Info("quit requested by display")
			return nil
		}
		select {
		case <-ctx.Done():
			l.log.Info("frame loop cancelled")
			return nil
		default:
		}
	}
}

// Step runs one already-captured frame through the pipeline, annotates it
// in place and forwards it to the sink. It returns the sink's quit request.
func (l *Loop) Step(frame *gocv.Mat) bool {
	monitor.FramesTotal.Inc()
	c, found := l.backend.Detect(*frame)

	var reading *ranging.Reading
	if found {
		monitor.CandidatesTotal.Inc()
		reading = l.consume(c)
		l.Annotate(frame, c, reading)
	}
	l.publish(found, reading)
	return l.sink.Show(*frame)
}

// consume feeds one candidate to the calibration state machine. It returns
// a reading only once calibration is complete.
func (l *Loop) consume(c iface.Candidate) *ranging.Reading {
	width := float64(c.ApparentWidth)
	if l.state.Phase() == ranging.PhaseCalibrating {
		completed := l.state.Add(width)
		samples := l.state.Samples()
		monitor.CalibrationSamples.Set(float64(len(samples)))
		if completed {
			focal, _ := l.state.FocalLength()
			monitor.FocalLength.Set(focal)
			l.log.Info(fmt.Sprintf("Focal length calculated: %v", focal),
				zap.Float64("focalLength", focal), zap.Float64s("samples", samples))
			if l.OnCalibrated != nil {
				l.OnCalibrated(Calibrated{FocalLength: focal, Samples: samples})
			}
		}
		return nil
	}

	r, err := l.state.Estimate(width)
	if err != nil {
		l.log.Error("estimate", zap.Error(err))
		return nil
	}
	if r.Defined {
		monitor.Distance.Set(r.Value)
		if r.WithinTolerance {
			monitor.WithinToleranceTotal.Inc()
		}
	}
	return &r
}

func (l *Loop) publish(found bool, reading *ranging.Reading) {
	focal, _ := l.state.FocalLength()
	phase := l.state.Phase().String()
	samples := len(l.state.Samples())

	l.mu.Lock()
	defer l.mu.Unlock()
	s := &l.status
	s.Frames++
	s.Phase = phase
	s.Samples = samples
	s.FocalLength = focal
	if found {
		s.Detections++
		s.LastDetection = time.Now()
	}
	if reading != nil && reading.Defined {
		s.HasReading = true
		s.Distance = reading.Value
		s.WithinTolerance = reading.WithinTolerance
	}
}

// Status returns a copy of the latest snapshot.
func (l *Loop) Status() iface.Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}
