package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
)

// EncodedImage is a PNG rendition of a frame for JSON transport.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as base64 PNG.
func EncodePNG(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	b := img.Bounds()
	return &EncodedImage{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// Letterbox scales img to fit inside width x height keeping its aspect ratio
// and centres it on a black canvas of exactly that size. Frames already at
// the target size are returned unchanged.
func Letterbox(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if width <= 0 || height <= 0 || (b.Dx() == width && b.Dy() == height) {
		return img
	}

	var fitted *image.NRGBA
	if b.Dx() <= width && b.Dy() <= height {
		// Fit never enlarges, so small frames are scaled up explicitly.
		scale := math.Min(float64(width)/float64(b.Dx()), float64(height)/float64(b.Dy()))
		w := int(math.Round(float64(b.Dx()) * scale))
		h := int(math.Round(float64(b.Dy()) * scale))
		fitted = imaging.Resize(img, w, h, imaging.Linear)
	} else {
		fitted = imaging.Fit(img, width, height, imaging.Linear)
	}
	if fitted.Bounds().Dx() == width && fitted.Bounds().Dy() == height {
		return fitted
	}

	canvas := imaging.New(width, height, color.Black)
	return imaging.PasteCenter(canvas, fitted)
}

// Crop extracts r from img and optionally rescales it by scale. The region
// is clipped to the image; an empty intersection is an error.
func Crop(img image.Image, r image.Rectangle, scale float64) (*image.NRGBA, error) {
	clipped := r.Intersect(img.Bounds())
	if clipped.Empty() {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", r, img.Bounds())
	}

	cropped := imaging.Crop(img, clipped)
	if scale != 1.0 && scale > 0 {
		w := int(float64(cropped.Bounds().Dx()) * scale)
		h := int(float64(cropped.Bounds().Dy()) * scale)
		if w > 0 && h > 0 {
			cropped = imaging.Resize(cropped, w, h, imaging.Lanczos)
		}
	}
	return cropped, nil
}

// FractionRect converts a rectangle given as fractions of the image size
// (0..1 on each axis) to pixel coordinates within bounds.
func FractionRect(bounds image.Rectangle, x0, y0, x1, y1 float64) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	return image.Rect(
		bounds.Min.X+int(x0*w), bounds.Min.Y+int(y0*h),
		bounds.Min.X+int(x1*w), bounds.Min.Y+int(y1*h),
	)
}

// Save writes img to path; the format follows the file extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}
