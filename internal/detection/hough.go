package detection

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// HoughDetector finds the ball with a pure Go implementation of the Hough
// gradient method.
//
// # Algorithm
//
//  1. Intensity conversion and 9x9 Gaussian blur (sigma 2)
//  2. Sobel derivatives and Canny edges (thresholds Param1/2 and Param1)
//  3. Every edge pixel votes along its gradient line, in both directions,
//     for centres between MinRadius and MaxRadius away
//  4. The accumulator is summed over 3x3 cells; sums above Param2 that are
//     local maxima become centre candidates, ranked by sum
//  5. For each candidate, in rank order, the radius with the best edge support
//     per unit radius is chosen, then centre and radius are refitted to the
//     rim by least squares. Circles outside the radius window, closer than
//     MinDist to an accepted circle, or with Param2 or fewer supporting edge
//     points are dropped
//
// Detect reports only the first accepted circle.
type HoughDetector struct {
	params Params
}

// NewHoughDetector returns a detector using DefaultParams.
func NewHoughDetector() *HoughDetector {
	return &HoughDetector{params: DefaultParams()}
}

// Detect returns the highest-ranked circle in frame.
func (d *HoughDetector) Detect(frame image.Image) (Circle, bool) {
	circles := d.find(frame, 1)
	if len(circles) == 0 {
		return Circle{}, false
	}
	return circles[0], true
}

type edgePoint struct {
	x, y float64
}

type peak struct {
	x, y  int
	votes int
}

// find returns up to limit accepted circles in rank order. A limit of zero
// or less means no limit.
func (d *HoughDetector) find(frame image.Image, limit int) []Circle {
	b := frame.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return nil
	}
	p := d.params

	smoothed := smooth(frame, p.BlurSize, p.BlurSigma)
	dx, dy := sobel(smoothed)
	edges := canny(dx, dy, p.Param1/2, p.Param1)

	acc, aw, ah, points := vote(edges, dx, dy, p)
	if len(points) == 0 {
		return nil
	}
	peaks := findPeaks(acc, aw, ah, p.Param2)

	var circles []Circle
	minDist2 := p.MinDist * p.MinDist
	for _, pk := range peaks {
		px := float64(pk.x) * p.DP
		py := float64(pk.y) * p.DP

		r0, ok := fitRadius(points, px, py, p)
		if !ok {
			continue
		}
		cx, cy, r, ok := refine(points, px, py, r0)
		if !ok || r < float64(p.MinRadius) || r > float64(p.MaxRadius) {
			continue
		}
		if support(points, cx, cy, r) <= p.Param2 {
			continue
		}

		tooClose := false
		for _, c := range circles {
			ddx := c.X - float64(b.Min.X) - cx
			ddy := c.Y - float64(b.Min.Y) - cy
			if ddx*ddx+ddy*ddy < minDist2 {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}

		circles = append(circles, roundCircle(cx, cy, r, b.Min))
		if limit > 0 && len(circles) >= limit {
			break
		}
	}
	return circles
}

// vote fills the centre accumulator and returns the edge points that took
// part in voting.
func vote(edges []bool, dx, dy *plane, p Params) (acc []int, aw, ah int, points []edgePoint) {
	idp := 1 / p.DP
	aw = int(math.Ceil(float64(dx.w) * idp))
	ah = int(math.Ceil(float64(dx.h) * idp))
	acc = make([]int, aw*ah)

	for i, isEdge := range edges {
		if !isEdge {
			continue
		}
		gx, gy := dx.pix[i], dy.pix[i]
		mag := math.Hypot(gx, gy)
		if mag == 0 {
			continue
		}
		ux, uy := gx/mag, gy/mag
		x, y := float64(i%dx.w), float64(i/dx.w)

		for _, sign := range [2]float64{1, -1} {
			for r := p.MinRadius; r <= p.MaxRadius; r++ {
				ax := int(math.Round((x + sign*ux*float64(r)) * idp))
				ay := int(math.Round((y + sign*uy*float64(r)) * idp))
				if ax < 0 || ay < 0 || ax >= aw || ay >= ah {
					break
				}
				acc[ay*aw+ax]++
			}
		}
		points = append(points, edgePoint{x: x, y: y})
	}
	return acc, aw, ah, points
}

// boxSum returns the sum of every accumulator cell and its eight
// neighbours.
func boxSum(acc []int, aw, ah int) []int {
	out := make([]int, len(acc))
	for y := 0; y < ah; y++ {
		for x := 0; x < aw; x++ {
			var sum int
			for yy := max(y-1, 0); yy <= min(y+1, ah-1); yy++ {
				for xx := max(x-1, 0); xx <= min(x+1, aw-1); xx++ {
					sum += acc[yy*aw+xx]
				}
			}
			out[y*aw+x] = sum
		}
	}
	return out
}

// findPeaks returns the cells of the summed accumulator above threshold that
// are maxima of their 8-neighbourhood, strongest first. Ties keep raster
// order.
func findPeaks(acc []int, aw, ah, threshold int) []peak {
	sums := boxSum(acc, aw, ah)
	var peaks []peak
	for y := 1; y < ah-1; y++ {
		for x := 1; x < aw-1; x++ {
			i := y*aw + x
			v := sums[i]
			if v <= threshold {
				continue
			}
			if v > sums[i-aw-1] && v > sums[i-aw] && v > sums[i-aw+1] && v > sums[i-1] &&
				v >= sums[i+1] && v >= sums[i+aw-1] && v >= sums[i+aw] && v >= sums[i+aw+1] {
				peaks = append(peaks, peak{x: x, y: y, votes: v})
			}
		}
	}
	sort.SliceStable(peaks, func(a, b int) bool {
		return peaks[a].votes > peaks[b].votes
	})
	return peaks
}

// fitRadius picks the radius around (cx, cy) with the highest edge support
// relative to its circumference. Support for radius r counts edge points
// whose distance rounds to r-1, r or r+1. The returned radius is the mean
// distance of the supporting points.
func fitRadius(points []edgePoint, cx, cy float64, p Params) (float64, bool) {
	minR, maxR := float64(p.MinRadius), float64(p.MaxRadius)
	bins := make([]int, p.MaxRadius+2)
	dists := make([]float64, 0, len(points))
	for _, pt := range points {
		d := math.Hypot(pt.x-cx, pt.y-cy)
		if d < minR || d > maxR {
			continue
		}
		bins[int(math.Round(d))]++
		dists = append(dists, d)
	}

	bestR, bestCount := 0, 0
	for r := p.MinRadius; r <= p.MaxRadius; r++ {
		n := bins[r-1] + bins[r] + bins[r+1]
		if n == 0 {
			continue
		}
		if bestR == 0 || n*bestR > bestCount*r {
			bestR, bestCount = r, n
		}
	}
	if bestCount <= p.Param2 {
		return 0, false
	}

	support := make([]float64, 0, bestCount)
	for _, d := range dists {
		if math.Abs(d-float64(bestR)) <= 1.5 {
			support = append(support, d)
		}
	}
	return stat.Mean(support, nil), true
}

// refine refits centre and radius to the rim around the estimate (cx, cy, r),
// starting with a wide band of edge points and narrowing it on each pass.
func refine(points []edgePoint, cx, cy, r float64) (float64, float64, float64, bool) {
	for _, band := range [...]float64{math.Max(8, 0.1*r), 3, 2} {
		var ok bool
		cx, cy, r, ok = fitCircle(points, cx, cy, r, band)
		if !ok {
			return 0, 0, 0, false
		}
	}
	return cx, cy, r, true
}

// fitCircle solves u² + v² + D·u + E·v + F = 0 in the least squares sense
// over the points within band of the circle (cx, cy, r), with u and v taken
// relative to (cx, cy).
func fitCircle(points []edgePoint, cx, cy, r, band float64) (float64, float64, float64, bool) {
	var a, b []float64
	for _, pt := range points {
		u, v := pt.x-cx, pt.y-cy
		if math.Abs(math.Hypot(u, v)-r) > band {
			continue
		}
		a = append(a, u, v, 1)
		b = append(b, -(u*u + v*v))
	}
	n := len(b)
	if n < 3 {
		return 0, 0, 0, false
	}

	var sol mat.VecDense
	if err := sol.SolveVec(mat.NewDense(n, 3, a), mat.NewVecDense(n, b)); err != nil {
		return 0, 0, 0, false
	}
	ox, oy := -sol.AtVec(0)/2, -sol.AtVec(1)/2
	r2 := ox*ox + oy*oy - sol.AtVec(2)
	if !(r2 > 0) || math.IsInf(r2, 0) {
		return 0, 0, 0, false
	}
	return cx + ox, cy + oy, math.Sqrt(r2), true
}

// support counts the edge points within 1.5 pixels of the circle.
func support(points []edgePoint, cx, cy, r float64) int {
	var n int
	for _, pt := range points {
		if math.Abs(math.Hypot(pt.x-cx, pt.y-cy)-r) <= 1.5 {
			n++
		}
	}
	return n
}
