package engine

import (
	"image"

	iface "LaserRange/interface"

	"gocv.io/x/gocv"
)

// Segment isolates marker-coloured pixels of a BGR frame. The caller owns
// the returned mask. kernel is the structuring element for erode/dilate.
func Segment(frame gocv.Mat, p Params, kernel gocv.Mat) gocv.Mat {
	if frame.Empty() {
		return gocv.NewMat()
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(hsv, &blurred, image.Pt(p.BlurKernel, p.BlurKernel), 0, 0, gocv.BorderDefault)

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), frame.Rows(), frame.Cols(), gocv.MatTypeCV8U)
	band := gocv.NewMat()
	defer band.Close()
	for _, b := range p.HueBands {
		gocv.InRangeWithScalar(blurred, b.Lower(), b.Upper(), &band)
		gocv.BitwiseOr(mask, band, &mask)
	}

	// erode first to drop speckle, then dilate to restore surviving blobs
	for i := 0; i < p.MorphIterations; i++ {
		gocv.Erode(mask, &mask, kernel)
	}
	for i := 0; i < p.MorphIterations; i++ {
		gocv.Dilate(mask, &mask, kernel)
	}
	return mask
}

// Extract returns the external contours of a mask in OpenCV's enumeration order.
func Extract(mask gocv.Mat) []iface.Region {
	if mask.Empty() {
		return nil
	}
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	regions := make([]iface.Region, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		regions = append(regions, iface.Region{
			Points:    contour.ToPoints(),
			Area:      gocv.ContourArea(contour),
			Perimeter: gocv.ArcLength(contour, true),
			Bounds:    gocv.BoundingRect(contour),
		})
	}
	return regions
}
