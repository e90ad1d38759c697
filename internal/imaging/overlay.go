package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Canvas is an RGBA copy of a frame that annotations are drawn onto.
type Canvas struct {
	*image.RGBA
}

// NewCanvas copies img into a new RGBA canvas with the same bounds.
func NewCanvas(img image.Image) *Canvas {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return &Canvas{RGBA: dst}
}

// ParseColor parses "#RRGGBB" or "#RRGGBBAA". The alpha byte defaults to
// opaque.
func ParseColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}

	alpha := uint8(255)
	switch len(hex) {
	case 7:
	case 9:
		a, err := strconv.ParseUint(hex[7:], 16, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("invalid alpha in %q: %w", hex, err)
		}
		alpha = uint8(a)
		hex = hex[:7]
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: alpha}, nil
}

// MustParseColor is ParseColor for constant colours.
func MustParseColor(hex string) color.RGBA {
	c, err := ParseColor(hex)
	if err != nil {
		panic(err)
	}
	return c
}

// blend mixes c over the pixel at (x, y) in Lab space according to c's alpha.
func (cv *Canvas) blend(x, y int, c color.RGBA) {
	if !(image.Point{X: x, Y: y}).In(cv.Bounds()) {
		return
	}
	if c.A == 255 {
		cv.SetRGBA(x, y, c)
		return
	}
	under, _ := colorful.MakeColor(cv.RGBAAt(x, y))
	over := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
	r, g, b := under.BlendLab(over, float64(c.A)/255).Clamped().RGB255()
	cv.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
}

// Circle draws a circle outline of the given thickness centred on (cx, cy).
func (cv *Canvas) Circle(cx, cy, r float64, thickness int, c color.RGBA) {
	if thickness < 1 {
		thickness = 1
	}
	half := float64(thickness) / 2
	inner, outer := r-half, r+half
	if inner < 0 {
		inner = 0
	}

	x0, x1 := int(math.Floor(cx-outer)), int(math.Ceil(cx+outer))
	y0, y1 := int(math.Floor(cy-outer)), int(math.Ceil(cy+outer))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			d := math.Hypot(float64(x)-cx, float64(y)-cy)
			if d >= inner && d <= outer {
				cv.blend(x, y, c)
			}
		}
	}
}

// Dot fills a disc of radius r centred on (cx, cy).
func (cv *Canvas) Dot(cx, cy, r float64, c color.RGBA) {
	cv.Circle(cx, cy, r/2, int(math.Ceil(r)), c)
}

// LineHeight is the vertical advance of Text lines.
const LineHeight = 16

// Text draws label with its top-left corner at (x, y) on a filled
// background box.
func (cv *Canvas) Text(x, y int, label string, fg, bg color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  cv.RGBA,
		Src:  image.NewUniform(fg),
		Face: face,
	}
	width := d.MeasureString(label).Ceil()
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()

	for dy := -2; dy < height+2; dy++ {
		for dx := -2; dx < width+2; dx++ {
			cv.blend(x+dx, y+dy, bg)
		}
	}

	d.Dot = fixed.Point26_6{
		X: fixed.I(x),
		Y: fixed.I(y) + metrics.Ascent,
	}
	d.DrawString(label)
}

// Lines draws each label on its own line starting at (x, y).
func (cv *Canvas) Lines(x, y int, labels []string, fg, bg color.RGBA) {
	for i, l := range labels {
		cv.Text(x, y+i*LineHeight, l, fg, bg)
	}
}
