package engine

import (
	"image"
	"image/color"
	"testing"

	iface "LaserRange/interface"
	"LaserRange/ranging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func blankFrame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 240, 320, gocv.MatTypeCV8UC3)
}

func diskFrame(radius int, c color.RGBA) gocv.Mat {
	frame := blankFrame()
	gocv.Circle(&frame, image.Pt(160, 120), radius, c, -1)
	return frame
}

var (
	laserRed   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	wrappedRed = color.RGBA{R: 255, G: 0, B: 43, A: 255} // hue ≈ 175
	plainGreen = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)

func TestDetector_All(t *testing.T) {
	d := &Detector{}

	t.Run("Test Process Before New", func(t *testing.T) {
		frame := blankFrame()
		defer frame.Close()
		_, _, err := d.Process(frame)
		assert.ErrorIs(t, err, ErrNotRegistered)
	})

	t.Run("Test New", func(t *testing.T) {
		assert.True(t, d.New())
		assert.Equal(t, REGISTERED, d.State)
	})

	t.Run("Test Process Before Configure", func(t *testing.T) {
		frame := blankFrame()
		defer frame.Close()
		_, _, err := d.Process(frame)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("Test Configure", func(t *testing.T) {
		bad := DefaultParams()
		bad.BlurKernel = 4
		assert.Error(t, d.Configure(bad))
		assert.Equal(t, REGISTERED, d.State)

		require.NoError(t, d.Configure(DefaultParams()))
		assert.Equal(t, IDLE, d.State)
		assert.Equal(t, DefaultParams(), d.CheckConfig())
	})

	t.Run("Test Detect", func(t *testing.T) {
		frame := diskFrame(20, laserRed)
		defer frame.Close()

		c, ok := d.Detect(frame)
		require.True(t, ok)
		assert.InDelta(t, 41, c.ApparentWidth, 3)
		assert.Greater(t, c.Circularity, 0.7)
		assert.Greater(t, c.AspectRatio, 0.8)
		assert.Less(t, c.AspectRatio, 1.2)
		assert.Equal(t, IDLE, d.State)
	})

	t.Run("Test Detect Wrapped Hue", func(t *testing.T) {
		frame := diskFrame(20, wrappedRed)
		defer frame.Close()

		_, ok := d.Detect(frame)
		assert.True(t, ok)
	})

	t.Run("Test Detect Ignores Other Colours", func(t *testing.T) {
		frame := diskFrame(20, plainGreen)
		defer frame.Close()

		_, ok := d.Detect(frame)
		assert.False(t, ok)
	})

	t.Run("Test Destroy", func(t *testing.T) {
		d.Destroy()
		assert.Equal(t, UNREGISTERED, d.State)
		assert.Equal(t, Params{}, d.CheckConfig())
	})
}

func TestSegment_BandsAreIndependent(t *testing.T) {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	frame := diskFrame(20, wrappedRed)
	defer frame.Close()

	lowOnly := DefaultParams()
	lowOnly.HueBands = []HueBand{RedLow}
	mask := Segment(frame, lowOnly, kernel)
	assert.Equal(t, 0, gocv.CountNonZero(mask))
	mask.Close()

	highOnly := DefaultParams()
	highOnly.HueBands = []HueBand{RedHigh}
	mask = Segment(frame, highOnly, kernel)
	assert.Greater(t, gocv.CountNonZero(mask), 1000)
	mask.Close()
}

func TestSegment_SpeckleRemoved(t *testing.T) {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	frame := blankFrame()
	defer frame.Close()
	// isolated 2x2 specks do not survive two erosions
	for _, p := range []image.Point{{20, 20}, {200, 40}, {300, 200}} {
		gocv.Rectangle(&frame, image.Rect(p.X, p.Y, p.X+1, p.Y+1), laserRed, -1)
	}

	mask := Segment(frame, DefaultParams(), kernel)
	defer mask.Close()
	assert.Equal(t, 0, gocv.CountNonZero(mask))
}

func TestSegment_EmptyFrame(t *testing.T) {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	empty := gocv.NewMat()
	defer empty.Close()

	mask := Segment(empty, DefaultParams(), kernel)
	defer mask.Close()
	assert.True(t, mask.Empty())
	assert.Empty(t, Extract(mask))
}

func TestExtract_CircularityOfDigitizedShapes(t *testing.T) {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 240, 320, gocv.MatTypeCV8U)
	defer mask.Close()
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gocv.Circle(&mask, image.Pt(80, 120), 30, white, -1)
	gocv.Rectangle(&mask, image.Rect(150, 100, 250, 110), white, -1)

	regions := Extract(mask)
	require.Len(t, regions, 2)

	var disk, bar iface.Region
	for _, r := range regions {
		if r.Bounds.Dx() > 80 {
			bar = r
		} else {
			disk = r
		}
	}
	assert.Greater(t, Circularity(disk.Area, disk.Perimeter), 0.8)
	assert.Less(t, Circularity(bar.Area, bar.Perimeter), 0.4)

	_, ok := Classify([]iface.Region{bar}, DefaultParams())
	assert.False(t, ok)
	c, ok := Classify([]iface.Region{disk}, DefaultParams())
	require.True(t, ok)
	assert.InDelta(t, 61, c.ApparentWidth, 2)
}

func TestAnnotate_DrawsBoxAndText(t *testing.T) {
	c := iface.Candidate{Bounds: image.Rect(100, 100, 140, 140), ApparentWidth: 40}

	countLit := func(reading *ranging.Reading) int {
		frame := blankFrame()
		defer frame.Close()
		Annotate(&frame, c, reading)
		gray := gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
		return gocv.CountNonZero(gray)
	}

	boxOnly := countLit(nil)
	assert.Greater(t, boxOnly, 0)
	assert.Equal(t, boxOnly, countLit(&ranging.Reading{}), "undefined reading draws no text")

	withDistance := countLit(&ranging.Reading{Value: 50, Defined: true})
	assert.Greater(t, withDistance, boxOnly)

	withTolerance := countLit(&ranging.Reading{Value: 200, Defined: true, WithinTolerance: true})
	assert.Greater(t, withTolerance, withDistance)

	frame := blankFrame()
	defer frame.Close()
	Annotate(&frame, c, nil)
	px := frame.GetVecbAt(100, 100)
	assert.Equal(t, []uint8{0, 255, 0}, []uint8{px[0], px[1], px[2]})
}
