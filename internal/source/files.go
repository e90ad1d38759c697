// Package source provides frame sources for the measurement loop.
//
// Every source satisfies session.Source: Read returns the next frame, or
// false when the stream has ended or a frame could not be acquired. Sources
// log the reason for a false result; the loop only sees that it must stop.
//
// Three realisations exist:
//   - Files: a still image or a directory of images.
//   - MJPEG: a multipart JPEG stream over HTTP, as served by IP webcam apps.
//   - Camera: an OpenCV capture device (requires the gocv build tag).
package source

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"github.com/ironsheep/ballmeter/internal/imaging"
)

// ErrNoImages is returned when a directory holds no supported images.
var ErrNoImages = errors.New("source: no images found")

// FilesOptions controls playback of a Files source.
type FilesOptions struct {
	// Loop restarts from the first image after the last one.
	Loop bool

	// Interval is the minimum time between frames. Zero reads as fast as
	// the loop asks.
	Interval time.Duration
}

// Files replays still images from disk.
type Files struct {
	paths []string
	cache *imaging.ImageCache
	opts  FilesOptions
	next  int
	last  time.Time
	sleep func(time.Duration)
}

// NewFiles creates a source for path, which may be a single image or a
// directory of images. With Loop set, decoded frames are kept in cache so
// the directory is read from disk only once; otherwise each frame is evicted
// after it has been read.
func NewFiles(path string, cache *imaging.ImageCache, opts FilesOptions) (*Files, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame source: %w", err)
	}

	var paths []string
	if info.IsDir() {
		paths, err = imaging.ListImages(path)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("%w in %s", ErrNoImages, path)
		}
	} else {
		paths = []string{path}
	}

	if cache == nil {
		cache = imaging.NewImageCache()
	}
	return &Files{
		paths: paths,
		cache: cache,
		opts:  opts,
		sleep: time.Sleep,
	}, nil
}

// Len reports how many images the source cycles through.
func (f *Files) Len() int {
	return len(f.paths)
}

// Read returns the next image.
func (f *Files) Read() (image.Image, bool) {
	if f.next >= len(f.paths) {
		if !f.opts.Loop {
			return nil, false
		}
		f.next = 0
	}

	if f.opts.Interval > 0 && !f.last.IsZero() {
		if wait := f.opts.Interval - time.Since(f.last); wait > 0 {
			f.sleep(wait)
		}
	}
	f.last = time.Now()

	path := f.paths[f.next]
	f.next++

	img, err := f.cache.Load(path)
	if err != nil {
		slog.Warn("frame acquisition failed", "path", path, "error", err)
		return nil, false
	}
	if !f.opts.Loop {
		f.cache.Evict(path)
	}
	return img, true
}

// Close drops the cached frames.
func (f *Files) Close() error {
	slog.Debug("files source closed", "cached", f.cache.Len())
	f.cache.Clear()
	return nil
}
