package detection

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"
	"gonum.org/v1/gonum/floats"
)

// plane is a single-channel intensity image with 0-based coordinates and
// values in the 0-255 range.
type plane struct {
	w, h int
	pix  []float64
}

func newPlane(w, h int) *plane {
	return &plane{w: w, h: h, pix: make([]float64, w*h)}
}

// at returns the value at (x, y), replicating border pixels for coordinates
// outside the plane.
func (p *plane) at(x, y int) float64 {
	return p.pix[clamp(y, 0, p.h-1)*p.w+clamp(x, 0, p.w-1)]
}

// gaussianWeights returns a normalised 1-D Gaussian of the given size.
func gaussianWeights(size int, sigma float64) []float64 {
	w := make([]float64, size)
	half := float64(size-1) / 2
	for i := range w {
		d := float64(i) - half
		w[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(w), w)
	return w
}

// smooth converts a frame to single-channel intensity and applies a separable
// Gaussian blur of the given kernel size and sigma.
func smooth(img image.Image, size int, sigma float64) *plane {
	gray := effect.Grayscale(img)

	weights := gaussianWeights(size, sigma)
	row := convolution.NewKernel(size, 1)
	copy(row.Matrix, weights)
	col := convolution.NewKernel(1, size)
	copy(col.Matrix, weights)

	opts := &convolution.Options{Bias: 0, Wrap: false, KeepAlpha: false}
	blurred := convolution.Convolve(convolution.Convolve(gray, row, opts), col, opts)

	b := blurred.Bounds()
	p := newPlane(b.Dx(), b.Dy())
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			p.pix[y*p.w+x] = float64(blurred.RGBAAt(b.Min.X+x, b.Min.Y+y).R)
		}
	}
	return p
}

// clamp constrains an integer value to the range [lo, hi].
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
