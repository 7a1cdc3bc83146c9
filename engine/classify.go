package engine

import (
	"fmt"
	"image"
	"image/color"
	"math"

	iface "LaserRange/interface"
	"LaserRange/ranging"

	"gocv.io/x/gocv"
)

var (
	boxColor       = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	distanceColor  = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	toleranceColor = color.RGBA{R: 0, G: 0, B: 255, A: 0}
)

// Circularity is 4π·area/perimeter², 1.0 for an ideal disk.
func Circularity(area, perimeter float64) float64 {
	if perimeter == 0 {
		return 0
	}
	return 4 * math.Pi * area / (perimeter * perimeter)
}

// Classify returns the first region that passes every shape filter.
// Regions after the first match are not inspected.
func Classify(regions []iface.Region, p Params) (iface.Candidate, bool) {
	for _, r := range regions {
		if r.Area <= p.MinArea {
			continue
		}
		// degenerate point/line contours
		if r.Perimeter == 0 {
			continue
		}
		circularity := Circularity(r.Area, r.Perimeter)
		if circularity <= p.CircularityMin {
			continue
		}
		w, h := r.Bounds.Dx(), r.Bounds.Dy()
		if h == 0 {
			continue
		}
		aspect := float64(w) / float64(h)
		if aspect <= p.AspectMin || aspect >= p.AspectMax {
			continue
		}
		return iface.Candidate{
			Bounds:        r.Bounds,
			AspectRatio:   aspect,
			Circularity:   circularity,
			ApparentWidth: w,
		}, true
	}
	return iface.Candidate{}, false
}

// Annotate draws the candidate box and, when a reading is given, the
// distance text and the tolerance marker above it.
func Annotate(frame *gocv.Mat, c iface.Candidate, reading *ranging.Reading) {
	gocv.Rectangle(frame, c.Bounds, boxColor, 2)
	if reading == nil || !reading.Defined {
		return
	}
	x, y := c.Bounds.Min.X, c.Bounds.Min.Y
	gocv.PutText(frame, fmt.Sprintf("Distance: %.2f cm", reading.Value), image.Pt(x, y-10),
		gocv.FontHersheySimplex, 0.6, distanceColor, 2)
	if reading.WithinTolerance {
		gocv.PutText(frame, "Within tolerance", image.Pt(x, y-30),
			gocv.FontHersheySimplex, 0.6, toleranceColor, 2)
	}
}
