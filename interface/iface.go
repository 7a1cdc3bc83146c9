package iface

import (
	"errors"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// ErrNoFrame is returned by a FrameSource that has stopped producing frames.
var ErrNoFrame = errors.New("capture source produced no frame")

// Region is one connected foreground component of a mask.
type Region struct {
	Points    []image.Point
	Area      float64
	Perimeter float64
	Bounds    image.Rectangle
}

// Candidate is a Region that passed every shape filter.
type Candidate struct {
	Bounds        image.Rectangle
	AspectRatio   float64
	Circularity   float64
	ApparentWidth int
}

// Status is the read model served to the status surfaces.
type Status struct {
	InstanceID      string    `json:"instanceId"`
	Phase           string    `json:"phase"`
	Samples         int       `json:"samples"`
	SampleTarget    int       `json:"sampleTarget"`
	FocalLength     float64   `json:"focalLength,omitempty"`
	Frames          int64     `json:"frames"`
	Detections      int64     `json:"detections"`
	HasReading      bool      `json:"hasReading"`
	Distance        float64   `json:"distance,omitempty"`
	WithinTolerance bool      `json:"withinTolerance"`
	LastDetection   time.Time `json:"lastDetection,omitempty"`
}

// StatusProvider exposes the latest Status snapshot.
type StatusProvider interface {
	Status() Status
}

// FrameSource delivers BGR frames on demand. Read blocks until a frame is
// available and returns ErrNoFrame once the source is exhausted.
type FrameSource interface {
	Read(dst *gocv.Mat) error
	Close() error
}

// FrameSink receives one annotated frame per iteration. Show reports
// whether the viewer asked to stop.
type FrameSink interface {
	Show(frame gocv.Mat) (quit bool)
	Close() error
}

// Backend is a per-frame marker detector.
type Backend interface {
	Detect(frame gocv.Mat) (Candidate, bool)
	Destroy()
}
