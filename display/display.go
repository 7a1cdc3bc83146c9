package display

import (
	"errors"
	"sync"

	iface "LaserRange/interface"
	"LaserRange/logger"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const quitKey = 'q'

// Window shows frames in a HighGUI window; pressing q asks the loop to stop.
type Window struct {
	w *gocv.Window
}

func NewWindow(name string) *Window {
	return &Window{w: gocv.NewWindow(name)}
}

func (w *Window) Show(frame gocv.Mat) bool {
	w.w.IMShow(frame)
	return w.w.WaitKey(1)&0xff == quitKey
}

func (w *Window) Close() error {
	return w.w.Close()
}

// Snapshot keeps the latest frame JPEG-encoded for the HTTP surface.
type Snapshot struct {
	mu   sync.RWMutex
	jpeg []byte
}

func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

func (s *Snapshot) Show(frame gocv.Mat) bool {
	if frame.Empty() {
		return false
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		logger.Log().Warn("snapshot encode failed", zap.Error(err))
		return false
	}
	data := buf.GetBytes()
	buf.Close()

	s.mu.Lock()
	s.jpeg = data
	s.mu.Unlock()
	return false
}

// Latest returns the most recent JPEG, or nil before the first frame.
func (s *Snapshot) Latest() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jpeg
}

func (s *Snapshot) Close() error {
	s.mu.Lock()
	s.jpeg = nil
	s.mu.Unlock()
	return nil
}

// Multi fans a frame out to every sink; any sink may request a stop.
type Multi []iface.FrameSink

func (m Multi) Show(frame gocv.Mat) bool {
	quit := false
	for _, s := range m {
		if s.Show(frame) {
			quit = true
		}
	}
	return quit
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
