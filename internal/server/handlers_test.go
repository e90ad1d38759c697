package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/ballmeter/internal/detection"
)

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return writePNG(t, img)
}

// createBallImageFile draws a dark disc on a white background.
func createBallImageFile(t *testing.T, width, height, cx, cy, radius int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= radius*radius {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return writePNG(t, img)
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "handler-test-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	if err := png.Encode(tmpFile, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return tmpFile.Name()
}

// fixedDetector reports the same circle for every frame, or nothing.
type fixedDetector struct {
	circle *detection.Circle
}

func (d fixedDetector) Detect(image.Image) (detection.Circle, bool) {
	if d.circle == nil {
		return detection.Circle{}, false
	}
	return *d.circle, true
}

type fakeCards struct {
	text string
	err  error
}

func (f fakeCards) ReadDiameter(image.Image) (string, error) {
	return f.text, f.err
}

func ballServer(radius float64) *Server {
	return New(Options{Detector: fixedDetector{circle: &detection.Circle{X: 160, Y: 120, Radius: radius}}})
}

// callTool runs a tools/call request through the full request path.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeResult unpacks the JSON text content of a successful tool call.
func decodeResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v (%v)", resp.Error.Message, resp.Error.Data)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content should hold one item, got %v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), v); err != nil {
		t.Fatalf("failed to decode tool result: %v", err)
	}
}

// Decoded forms of the tool results.
type snapshotJSON struct {
	State               string   `json:"state"`
	PixelsPerMM         *float64 `json:"pixels_per_mm"`
	ReferenceDiameterMM *float64 `json:"reference_diameter_mm"`
	DensityFactor       *float64 `json:"density_factor"`
}

type calibrationJSON struct {
	Accepted    bool              `json:"accepted"`
	Reason      string            `json:"reason"`
	Circle      *detection.Circle `json:"circle"`
	CardText    string            `json:"card_text"`
	Calibration snapshotJSON      `json:"calibration"`
}

type measureJSON struct {
	Found       bool              `json:"found"`
	Circle      *detection.Circle `json:"circle"`
	Measurement *struct {
		DiameterMM float64  `json:"diameter_mm"`
		VolumeCM3  float64  `json:"volume_cm3"`
		WeightG    *float64 `json:"weight_g"`
	} `json:"measurement"`
	Rounded *struct {
		VolumeCM3 int64  `json:"volume_cm3"`
		WeightG   *int64 `json:"weight_g"`
	} `json:"rounded"`
	Calibration snapshotJSON `json:"calibration"`
}

func TestHandleToolsCall_DetectBall(t *testing.T) {
	s := New(Options{})
	imgPath := createBallImageFile(t, 320, 240, 160, 120, 50)

	var got detectResult
	decodeResult(t, callTool(t, s, "ball_detect", map[string]interface{}{"path": imgPath}), &got)

	if got.Width != 320 || got.Height != 240 {
		t.Errorf("size: got %dx%d, want 320x240", got.Width, got.Height)
	}
	if got.Format != "png" || got.FileSizeBytes <= 0 {
		t.Errorf("image info: got format %q, %d bytes", got.Format, got.FileSizeBytes)
	}
	if !got.Found || got.Circle == nil {
		t.Fatal("expected the ball to be found")
	}
	if math.Abs(got.Circle.X-160) > 1 || math.Abs(got.Circle.Y-120) > 1 {
		t.Errorf("centre: got (%v, %v), want (160, 120)", got.Circle.X, got.Circle.Y)
	}
	if math.Abs(got.Circle.Radius-50) > 2 {
		t.Errorf("radius: got %v, want 50", got.Circle.Radius)
	}
}

func TestHandleToolsCall_DetectNothing(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	var got detectResult
	decodeResult(t, callTool(t, s, "ball_detect", map[string]interface{}{"path": imgPath}), &got)

	if got.Found || got.Circle != nil {
		t.Errorf("blank image should not yield a ball, got %+v", got.Circle)
	}
}

func TestHandleToolsCall_MeasureWorkflow(t *testing.T) {
	s := ballServer(100)
	imgPath := createTestImageFile(t, 320, 240, color.White)
	pathArg := map[string]interface{}{"path": imgPath}

	// Before calibration the ball is found but not measured.
	var before measureJSON
	decodeResult(t, callTool(t, s, "ball_measure", pathArg), &before)
	if !before.Found {
		t.Fatal("expected the ball to be found")
	}
	if before.Measurement != nil {
		t.Errorf("uncalibrated measure should have no measurement, got %+v", before.Measurement)
	}
	if before.Calibration.State != "uncalibrated" {
		t.Errorf("state: got %s, want uncalibrated", before.Calibration.State)
	}

	var cal calibrationJSON
	decodeResult(t, callTool(t, s, "ball_calibrate", map[string]interface{}{
		"path":             imgPath,
		"real_diameter_mm": 60,
	}), &cal)
	if !cal.Accepted {
		t.Fatalf("calibration rejected: %s", cal.Reason)
	}
	if cal.Calibration.PixelsPerMM == nil || math.Abs(*cal.Calibration.PixelsPerMM-200.0/60.0) > 1e-9 {
		t.Errorf("pixels_per_mm: got %v, want %v", cal.Calibration.PixelsPerMM, 200.0/60.0)
	}

	// Volume without a density factor.
	var mid measureJSON
	decodeResult(t, callTool(t, s, "ball_measure", pathArg), &mid)
	if mid.Measurement == nil {
		t.Fatal("calibrated measure should have a measurement")
	}
	if mid.Measurement.WeightG != nil {
		t.Errorf("weight should be absent before the density factor, got %v", *mid.Measurement.WeightG)
	}

	var density calibrationJSON
	decodeResult(t, callTool(t, s, "ball_set_density", map[string]interface{}{"value": "9,0"}), &density)
	if !density.Accepted {
		t.Fatalf("density factor rejected: %s", density.Reason)
	}
	if density.Calibration.State != "factor_set" {
		t.Errorf("state: got %s, want factor_set", density.Calibration.State)
	}

	var after measureJSON
	decodeResult(t, callTool(t, s, "ball_measure", pathArg), &after)
	if after.Measurement == nil || after.Rounded == nil {
		t.Fatal("expected a measurement")
	}
	if math.Abs(after.Measurement.DiameterMM-60) > 1e-9 {
		t.Errorf("diameter_mm: got %v, want 60", after.Measurement.DiameterMM)
	}
	if math.Abs(after.Measurement.VolumeCM3-113.097) > 0.001 {
		t.Errorf("volume_cm3: got %v, want 113.097", after.Measurement.VolumeCM3)
	}
	if after.Rounded.VolumeCM3 != 113 {
		t.Errorf("rounded volume: got %d, want 113", after.Rounded.VolumeCM3)
	}
	if after.Rounded.WeightG == nil || *after.Rounded.WeightG != 1018 {
		t.Errorf("rounded weight: got %v, want 1018", after.Rounded.WeightG)
	}

	var status snapshotJSON
	decodeResult(t, callTool(t, s, "ball_status", map[string]interface{}{}), &status)
	if status.State != "factor_set" || status.DensityFactor == nil || *status.DensityFactor != 9 {
		t.Errorf("status: got %+v", status)
	}
	if status.ReferenceDiameterMM == nil || *status.ReferenceDiameterMM != 60 {
		t.Errorf("reference diameter: got %v, want 60", status.ReferenceDiameterMM)
	}
}

func TestHandleToolsCall_CalibrationRejections(t *testing.T) {
	imgPath := createTestImageFile(t, 320, 240, color.White)

	t.Run("no ball", func(t *testing.T) {
		s := New(Options{Detector: fixedDetector{}})
		var got calibrationJSON
		decodeResult(t, callTool(t, s, "ball_calibrate", map[string]interface{}{
			"path": imgPath, "real_diameter_mm": 60,
		}), &got)
		if got.Accepted {
			t.Fatal("calibration without a ball should be rejected")
		}
		if got.Calibration.State != "uncalibrated" {
			t.Errorf("state: got %s, want uncalibrated", got.Calibration.State)
		}
	})

	t.Run("not a number", func(t *testing.T) {
		s := ballServer(100)
		var got calibrationJSON
		decodeResult(t, callTool(t, s, "ball_calibrate", map[string]interface{}{
			"path": imgPath, "real_diameter_mm": "sixty",
		}), &got)
		if got.Accepted || got.Reason == "" {
			t.Errorf("expected rejection with a reason, got %+v", got)
		}
	})

	t.Run("missing diameter", func(t *testing.T) {
		s := ballServer(100)
		var got calibrationJSON
		decodeResult(t, callTool(t, s, "ball_calibrate", map[string]interface{}{"path": imgPath}), &got)
		if got.Accepted {
			t.Error("calibration without a diameter should be rejected")
		}
	})

	t.Run("second calibration", func(t *testing.T) {
		s := ballServer(100)
		var first, second calibrationJSON
		decodeResult(t, callTool(t, s, "ball_calibrate", map[string]interface{}{
			"path": imgPath, "real_diameter_mm": "60 mm",
		}), &first)
		decodeResult(t, callTool(t, s, "ball_calibrate", map[string]interface{}{
			"path": imgPath, "real_diameter_mm": 50,
		}), &second)
		if !first.Accepted {
			t.Fatalf("first calibration rejected: %s", first.Reason)
		}
		if second.Accepted {
			t.Fatal("second calibration should be rejected")
		}
		if !strings.Contains(second.Reason, "already") {
			t.Errorf("reason: got %q", second.Reason)
		}
		if *second.Calibration.PixelsPerMM != *first.Calibration.PixelsPerMM {
			t.Error("ratio changed after rejected calibration")
		}
	})

	t.Run("density before calibration", func(t *testing.T) {
		s := ballServer(100)
		var got calibrationJSON
		decodeResult(t, callTool(t, s, "ball_set_density", map[string]interface{}{"value": 9}), &got)
		if got.Accepted {
			t.Error("density factor before calibration should be rejected")
		}
		if got.Calibration.DensityFactor != nil {
			t.Error("density factor should stay unset")
		}
	})

	t.Run("negative density", func(t *testing.T) {
		s := ballServer(100)
		decodeResult(t, callTool(t, s, "ball_calibrate", map[string]interface{}{
			"path": imgPath, "real_diameter_mm": 60,
		}), &calibrationJSON{})
		var got calibrationJSON
		decodeResult(t, callTool(t, s, "ball_set_density", map[string]interface{}{"value": -9}), &got)
		if got.Accepted || got.Calibration.State != "calibrated" {
			t.Errorf("negative density should be rejected, got %+v", got)
		}
	})
}

func TestHandleToolsCall_CalibrateFromCard(t *testing.T) {
	imgPath := createTestImageFile(t, 320, 240, color.White)
	args := map[string]interface{}{"path": imgPath, "use_card": true}

	s := ballServer(100)
	resp := callTool(t, s, "ball_calibrate", args)
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("use_card without a reader should fail the tool call, got %+v", resp.Error)
	}

	s = New(Options{
		Detector: fixedDetector{circle: &detection.Circle{X: 160, Y: 120, Radius: 100}},
		Cards:    fakeCards{err: errors.New("no text")},
	})
	var failed calibrationJSON
	decodeResult(t, callTool(t, s, "ball_calibrate", args), &failed)
	if failed.Accepted {
		t.Error("unreadable card should reject the calibration")
	}

	s = New(Options{
		Detector: fixedDetector{circle: &detection.Circle{X: 160, Y: 120, Radius: 100}},
		Cards:    fakeCards{text: "50"},
	})
	var got calibrationJSON
	decodeResult(t, callTool(t, s, "ball_calibrate", args), &got)
	if !got.Accepted {
		t.Fatalf("card calibration rejected: %s", got.Reason)
	}
	if got.CardText != "50" {
		t.Errorf("card_text: got %q, want 50", got.CardText)
	}
	if *got.Calibration.PixelsPerMM != 4 {
		t.Errorf("pixels_per_mm: got %v, want 4", *got.Calibration.PixelsPerMM)
	}
}

func decodePNG(t *testing.T, resp *MCPResponse) image.Image {
	t.Helper()

	var enc struct {
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		ImageBase64 string `json:"image_base64"`
		MimeType    string `json:"mime_type"`
	}
	decodeResult(t, resp, &enc)
	if enc.MimeType != "image/png" {
		t.Errorf("mime_type: got %s", enc.MimeType)
	}
	raw, err := base64.StdEncoding.DecodeString(enc.ImageBase64)
	if err != nil {
		t.Fatalf("bad base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("bad png: %v", err)
	}
	if img.Bounds().Dx() != enc.Width || img.Bounds().Dy() != enc.Height {
		t.Errorf("reported size %dx%d does not match image %v", enc.Width, enc.Height, img.Bounds())
	}
	return img
}

func TestHandleToolsCall_Edges(t *testing.T) {
	s := New(Options{})
	imgPath := createBallImageFile(t, 200, 150, 100, 75, 40)

	img := decodePNG(t, callTool(t, s, "ball_edges", map[string]interface{}{"path": imgPath}))
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 150 {
		t.Errorf("edge map size: got %v", img.Bounds())
	}

	// The disc outline is on the edge map; the background is not.
	r, _, _, _ := img.At(5, 5).RGBA()
	if r != 0 {
		t.Error("background should not be an edge")
	}
	found := false
	for x := 55; x <= 65 && !found; x++ {
		if r, _, _, _ := img.At(x, 75).RGBA(); r > 0 {
			found = true
		}
	}
	if !found {
		t.Error("expected an edge near the left side of the disc")
	}
}

func TestHandleToolsCall_Annotate(t *testing.T) {
	s := ballServer(40)
	imgPath := createTestImageFile(t, 320, 240, color.White)

	img := decodePNG(t, callTool(t, s, "ball_annotate", map[string]interface{}{"path": imgPath}))
	if img.Bounds().Dx() != 320 || img.Bounds().Dy() != 240 {
		t.Fatalf("annotated size: got %v", img.Bounds())
	}

	// Green circle outline at the right edge of the ball.
	r, g, b, _ := img.At(200, 120).RGBA()
	if g>>8 < 200 || r>>8 > 50 || b>>8 > 50 {
		t.Errorf("expected the circle colour at (200,120), got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	s := New(Options{})

	tests := []struct {
		name     string
		tool     string
		args     map[string]interface{}
		wantCode int
	}{
		{"non-existent file", "ball_detect", map[string]interface{}{"path": filepath.Join(t.TempDir(), "missing.png")}, -32000},
		{"missing path", "ball_measure", map[string]interface{}{}, -32000},
		{"unknown tool", "image_load", map[string]interface{}{}, -32000},
		{"bad value type", "ball_set_density", map[string]interface{}{"value": true}, -32000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, tt.tool, tt.args)
			if resp.Error == nil {
				t.Fatal("expected an error response")
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code: got %d, want %d", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New(Options{})
	resp := s.handleToolsCall(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`{invalid`),
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("expected -32602, got %+v", resp.Error)
	}
}

func TestRawValue(t *testing.T) {
	tests := []struct {
		json string
		want rawValue
	}{
		{`60`, "60"},
		{`60.5`, "60.5"},
		{`"60 mm"`, "60 mm"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var v rawValue
		if err := json.Unmarshal([]byte(tt.json), &v); err != nil {
			t.Errorf("%s: unexpected error %v", tt.json, err)
			continue
		}
		if v != tt.want {
			t.Errorf("%s: got %q, want %q", tt.json, v, tt.want)
		}
	}

	var v rawValue
	if err := json.Unmarshal([]byte(`[1]`), &v); err == nil {
		t.Error("array should be rejected")
	}
}
