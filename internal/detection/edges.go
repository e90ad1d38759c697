package detection

import (
	"image"
	"image/color"
	"math"
)

// sobel computes horizontal and vertical 3x3 Sobel derivatives of p.
// Border pixels use replicated edge values.
func sobel(p *plane) (dx, dy *plane) {
	dx = newPlane(p.w, p.h)
	dy = newPlane(p.w, p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			tl, t, tr := p.at(x-1, y-1), p.at(x, y-1), p.at(x+1, y-1)
			l, r := p.at(x-1, y), p.at(x+1, y)
			bl, b, br := p.at(x-1, y+1), p.at(x, y+1), p.at(x+1, y+1)

			i := y*p.w + x
			dx.pix[i] = (tr + 2*r + br) - (tl + 2*l + bl)
			dy.pix[i] = (bl + 2*b + br) - (tl + 2*t + tr)
		}
	}
	return dx, dy
}

// canny returns a w*h edge mask from precomputed derivatives.
//
// Magnitude is the L1 norm |dx|+|dy|. Edges are thinned by non-maximum
// suppression along the quantised gradient direction, then kept by
// hysteresis: pixels at or above high seed edges, pixels at or above low are
// kept only when 8-connected to a seed.
func canny(dx, dy *plane, low, high float64) []bool {
	w, h := dx.w, dx.h
	mag := make([]float64, w*h)
	for i := range mag {
		mag[i] = math.Abs(dx.pix[i]) + math.Abs(dy.pix[i])
	}

	suppressed := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m < low {
				continue
			}

			var n1, n2 float64
			angle := math.Atan2(dy.pix[i], dx.pix[i])
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1, n2 = mag[i-1], mag[i+1]
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1, n2 = mag[i-w-1], mag[i+w+1]
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1, n2 = mag[i-w], mag[i+w]
			default:
				n1, n2 = mag[i-w+1], mag[i+w-1]
			}

			if m >= n1 && m >= n2 {
				suppressed[i] = m
			}
		}
	}

	edges := make([]bool, w*h)
	stack := make([]int, 0, 256)
	for i, m := range suppressed {
		if m >= high && !edges[i] {
			edges[i] = true
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			jx, jy := j%w, j/w
			for ny := jy - 1; ny <= jy+1; ny++ {
				for nx := jx - 1; nx <= jx+1; nx++ {
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					k := ny*w + nx
					if !edges[k] && suppressed[k] >= low {
						edges[k] = true
						stack = append(stack, k)
					}
				}
			}
		}
	}
	return edges
}

// EdgeImage runs the detector's preprocessing and edge stages on a frame and
// returns the binary edge map, white on black. It is a diagnostic aid for
// checking lighting and focus; detection does not use the returned image.
func EdgeImage(frame image.Image) *image.Gray {
	b := frame.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if b.Empty() {
		return out
	}

	p := DefaultParams()
	smoothed := smooth(frame, p.BlurSize, p.BlurSigma)
	dx, dy := sobel(smoothed)
	edges := canny(dx, dy, p.Param1/2, p.Param1)
	for i, e := range edges {
		if e {
			out.SetGray(i%smoothed.w, i/smoothed.w, color.Gray{Y: 255})
		}
	}
	return out
}
