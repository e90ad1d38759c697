package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrNotMJPEG is returned when the server does not answer with a multipart
// stream.
var ErrNotMJPEG = errors.New("source: response is not a multipart MJPEG stream")

// maxBadParts is how many undecodable parts in a row end the stream.
const maxBadParts = 3

// MJPEG reads JPEG frames from an HTTP multipart/x-mixed-replace stream.
type MJPEG struct {
	url   string
	body  io.ReadCloser
	parts *multipart.Reader
}

// OpenMJPEG connects to url and checks that it serves a multipart stream.
// The stream stays open until Close or until ctx is cancelled. A nil client
// uses http.DefaultClient.
func OpenMJPEG(ctx context.Context, url string, client *http.Client) (*MJPEG, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid stream URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream returned %s", resp.Status)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: content type %q", ErrNotMJPEG, resp.Header.Get("Content-Type"))
	}

	// Some cameras repeat the leading dashes in the header parameter.
	boundary := strings.TrimPrefix(params["boundary"], "--")

	return &MJPEG{
		url:   url,
		body:  resp.Body,
		parts: multipart.NewReader(resp.Body, boundary),
	}, nil
}

// Read returns the next decoded frame. Isolated corrupt parts are skipped.
func (m *MJPEG) Read() (image.Image, bool) {
	for bad := 0; bad < maxBadParts; {
		part, err := m.parts.NextPart()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("MJPEG stream ended", "url", m.url, "error", err)
			}
			return nil, false
		}

		img, err := imaging.Decode(part)
		part.Close()
		if err != nil {
			bad++
			slog.Debug("skipping undecodable MJPEG part", "url", m.url, "error", err)
			continue
		}
		return img, true
	}

	slog.Warn("MJPEG stream is not producing decodable frames", "url", m.url)
	return nil, false
}

// Close ends the stream.
func (m *MJPEG) Close() error {
	return m.body.Close()
}
