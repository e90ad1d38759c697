//go:build gocv

package detection

import (
	"image"
	"log/slog"

	"gocv.io/x/gocv"
)

// OpenCVDetector runs OpenCV's HoughCircles with the same operating point as
// HoughDetector. It is only available in builds with the gocv tag.
type OpenCVDetector struct {
	params Params
}

// NewOpenCVDetector returns an OpenCV-backed detector.
func NewOpenCVDetector() (*OpenCVDetector, error) {
	return &OpenCVDetector{params: DefaultParams()}, nil
}

// Detect returns the first circle reported by HoughCircles.
func (d *OpenCVDetector) Detect(frame image.Image) (Circle, bool) {
	src, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		slog.Warn("frame conversion failed", "error", err)
		return Circle{}, false
	}
	defer src.Close()
	return d.DetectMat(src, frame.Bounds().Min)
}

// DetectMat runs detection on a BGR Mat, typically straight from a
// VideoCapture, without going through image.Image.
func (d *OpenCVDetector) DetectMat(src gocv.Mat, origin image.Point) (Circle, bool) {
	p := d.params

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: p.BlurSize, Y: p.BlurSize},
		p.BlurSigma, p.BlurSigma, gocv.BorderDefault)

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(blurred, &circles, gocv.HoughGradient,
		p.DP, p.MinDist, p.Param1, float64(p.Param2), p.MinRadius, p.MaxRadius)

	if circles.Empty() || circles.Cols() == 0 {
		return Circle{}, false
	}
	x := float64(circles.GetFloatAt(0, 0))
	y := float64(circles.GetFloatAt(0, 1))
	r := float64(circles.GetFloatAt(0, 2))
	return roundCircle(x, y, r, origin), true
}
