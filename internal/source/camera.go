//go:build gocv

package source

import (
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"
)

// Camera captures frames from an OpenCV video device or stream URL.
type Camera struct {
	device string
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	res    Resolution
}

// OpenCamera opens device (an index such as "0" or a stream URL) and
// negotiates the first resolution in prefs that the device accepts. When
// none is accepted the device default is kept.
func OpenCamera(device string, prefs []Resolution) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %q: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s", ErrCameraNotOpened, device)
	}

	c := &Camera{device: device, cap: capture, mat: gocv.NewMat()}
	c.res = c.negotiate(prefs)
	slog.Info("camera opened", "device", device, "width", c.res.Width, "height", c.res.Height)
	return c, nil
}

func (c *Camera) negotiate(prefs []Resolution) Resolution {
	for _, r := range prefs {
		c.cap.Set(gocv.VideoCaptureFrameWidth, float64(r.Width))
		c.cap.Set(gocv.VideoCaptureFrameHeight, float64(r.Height))
		got := Resolution{
			Width:  int(c.cap.Get(gocv.VideoCaptureFrameWidth)),
			Height: int(c.cap.Get(gocv.VideoCaptureFrameHeight)),
		}
		if got == r {
			return r
		}
		slog.Debug("camera rejected resolution", "device", c.device, "want", r, "got", got)
	}
	return Resolution{
		Width:  int(c.cap.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(c.cap.Get(gocv.VideoCaptureFrameHeight)),
	}
}

// Resolution returns the negotiated capture size.
func (c *Camera) Resolution() Resolution {
	return c.res
}

// Read grabs the next frame.
func (c *Camera) Read() (image.Image, bool) {
	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		slog.Warn("camera returned no frame", "device", c.device)
		return nil, false
	}
	img, err := c.mat.ToImage()
	if err != nil {
		slog.Warn("camera frame conversion failed", "device", c.device, "error", err)
		return nil, false
	}
	return img, true
}

// Close releases the device.
func (c *Camera) Close() error {
	c.mat.Close()
	return c.cap.Close()
}
