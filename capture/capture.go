package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	iface "LaserRange/interface"
	"LaserRange/logger"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var ErrNotOpened = errors.New("capture device could not be opened")

// Camera reads frames from a gocv VideoCapture.
type Camera struct {
	device string
	vc     *gocv.VideoCapture
}

// OpenCamera opens a device index ("0"), a video file or a stream URL.
func OpenCamera(device string) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotOpened, device, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotOpened, device)
	}
	// keep latency low on live streams
	vc.Set(gocv.VideoCaptureBufferSize, 1)
	logger.Log().Info("capture opened", zap.String("device", device))
	return &Camera{device: device, vc: vc}, nil
}

func (c *Camera) Read(dst *gocv.Mat) error {
	if c.vc == nil {
		return iface.ErrNoFrame
	}
	if ok := c.vc.Read(dst); !ok || dst.Empty() {
		return iface.ErrNoFrame
	}
	return nil
}

func (c *Camera) Close() error {
	if c.vc == nil {
		return nil
	}
	err := c.vc.Close()
	c.vc = nil
	logger.Log().Info("capture released", zap.String("device", c.device))
	return err
}

// Stills replays a fixed list of image files, one per Read.
type Stills struct {
	paths []string
	next  int
}

var stillExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true}

// OpenStills lists the images of dir in name order.
func OpenStills(dir string) (*Stills, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotOpened, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !stillExt[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrNotOpened, dir)
	}
	sort.Strings(paths)
	logger.Log().Info("replaying stills", zap.String("dir", dir), zap.Int("count", len(paths)))
	return &Stills{paths: paths}, nil
}

func (s *Stills) Read(dst *gocv.Mat) error {
	if s.next >= len(s.paths) {
		return iface.ErrNoFrame
	}
	path := s.paths[s.next]
	s.next++
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return fmt.Errorf("%w: unreadable image %s", iface.ErrNoFrame, path)
	}
	img.CopyTo(dst)
	return nil
}

func (s *Stills) Close() error {
	s.next = len(s.paths)
	return nil
}

// Open picks Stills for a directory and Camera for anything else.
func Open(device string) (iface.FrameSource, error) {
	if info, err := os.Stat(device); err == nil && info.IsDir() {
		return OpenStills(device)
	}
	return OpenCamera(device)
}
