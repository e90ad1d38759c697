package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strconv"

	"github.com/ironsheep/ballmeter/internal/calibration"
	"github.com/ironsheep/ballmeter/internal/detection"
	"github.com/ironsheep/ballmeter/internal/display"
	"github.com/ironsheep/ballmeter/internal/imaging"
	"github.com/ironsheep/ballmeter/internal/measure"
	"github.com/ironsheep/ballmeter/internal/session"
)

// ErrCardsUnavailable is returned by ball_calibrate with use_card when the
// server has no card reader.
var ErrCardsUnavailable = errors.New("calibration card reading is not configured")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "ball_detect", "ball_measure").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
// A rejected calibration is not an error; it is a result with accepted=false.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "ball_detect":
		return s.handleBallDetect(args)
	case "ball_edges":
		return s.handleBallEdges(args)
	case "ball_calibrate":
		return s.handleBallCalibrate(args)
	case "ball_set_density":
		return s.handleBallSetDensity(args)
	case "ball_status":
		return s.cal.Snapshot(), nil
	case "ball_measure":
		return s.handleBallMeasure(args)
	case "ball_annotate":
		return s.handleBallAnnotate(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// rawValue accepts a JSON number or string and keeps it as operator text,
// so both go through calibration.ParseValue.
type rawValue string

func (v *rawValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = rawValue(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("expected a number or string, got %s", data)
	}
	*v = rawValue(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

type pathArgs struct {
	Path string `json:"path"`
}

// loadAndDetect loads the image at the path in args and runs the detector.
func (s *Server) loadAndDetect(args json.RawMessage) (image.Image, *detection.Circle, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, nil, err
	}
	if a.Path == "" {
		return nil, nil, errors.New("path is required")
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, nil, err
	}
	c, ok := s.detector.Detect(img)
	if !ok {
		return img, nil, nil
	}
	return img, &c, nil
}

// === Detection Handlers ===

type detectResult struct {
	imaging.ImageInfo
	Found  bool              `json:"found"`
	Circle *detection.Circle `json:"circle,omitempty"`
}

func (s *Server) handleBallDetect(args json.RawMessage) (interface{}, error) {
	_, circle, err := s.loadAndDetect(args)
	if err != nil {
		return nil, err
	}
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	info, err := imaging.LoadImageInfo(s.cache, a.Path)
	if err != nil {
		return nil, err
	}
	return &detectResult{
		ImageInfo: *info,
		Found:     circle != nil,
		Circle:    circle,
	}, nil
}

func (s *Server) handleBallEdges(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.EncodePNG(detection.EdgeImage(img))
}

// === Calibration Handlers ===

type calibrateArgs struct {
	Path           string   `json:"path"`
	RealDiameterMM rawValue `json:"real_diameter_mm"`
	UseCard        bool     `json:"use_card"`
}

type calibrationResult struct {
	Accepted    bool                 `json:"accepted"`
	Reason      string               `json:"reason,omitempty"`
	Circle      *detection.Circle    `json:"circle,omitempty"`
	CardText    string               `json:"card_text,omitempty"`
	Calibration calibration.Snapshot `json:"calibration"`
}

func (s *Server) handleBallCalibrate(args json.RawMessage) (interface{}, error) {
	var a calibrateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.UseCard && s.cards == nil {
		return nil, ErrCardsUnavailable
	}

	img, circle, err := s.loadAndDetect(args)
	if err != nil {
		return nil, err
	}
	res := &calibrationResult{Circle: circle}

	raw := string(a.RealDiameterMM)
	if a.UseCard {
		raw, err = s.cards.ReadDiameter(img)
		if err != nil {
			return s.rejected(res, err), nil
		}
		res.CardText = raw
	}

	v, err := calibration.ParseValue(raw)
	if err == nil {
		err = s.cal.Calibrate(circle, v)
	}
	if err != nil {
		return s.rejected(res, err), nil
	}

	ratio, _ := s.cal.Ratio()
	s.log.Info("calibrated", "path", a.Path, "real_diameter_mm", v,
		"radius_px", circle.Radius, "pixels_per_mm", ratio)
	res.Accepted = true
	res.Calibration = s.cal.Snapshot()
	return res, nil
}

type densityArgs struct {
	Value rawValue `json:"value"`
}

func (s *Server) handleBallSetDensity(args json.RawMessage) (interface{}, error) {
	var a densityArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	res := &calibrationResult{}
	v, err := calibration.ParseValue(string(a.Value))
	if err == nil {
		err = s.cal.SetDensityFactor(v)
	}
	if err != nil {
		return s.rejected(res, err), nil
	}

	s.log.Info("density factor set", "density_factor", v)
	res.Accepted = true
	res.Calibration = s.cal.Snapshot()
	return res, nil
}

// rejected completes res for an action that left the calibration unchanged.
func (s *Server) rejected(res *calibrationResult, err error) *calibrationResult {
	s.log.Warn("calibration action rejected", "error", err)
	res.Accepted = false
	res.Reason = err.Error()
	res.Calibration = s.cal.Snapshot()
	return res
}

// === Measurement Handlers ===

type measureResult struct {
	Found       bool                 `json:"found"`
	Circle      *detection.Circle    `json:"circle,omitempty"`
	Measurement *measure.Result      `json:"measurement,omitempty"`
	Rounded     *measure.Rounded     `json:"rounded,omitempty"`
	Calibration calibration.Snapshot `json:"calibration"`
}

func (s *Server) measure(circle *detection.Circle) *measureResult {
	res := &measureResult{
		Found:       circle != nil,
		Circle:      circle,
		Calibration: s.cal.Snapshot(),
	}
	if circle == nil {
		return res
	}
	if m, ok := measure.Compute(circle.Diameter(), s.cal); ok {
		r := m.Rounded()
		res.Measurement = &m
		res.Rounded = &r
	}
	return res
}

func (s *Server) handleBallMeasure(args json.RawMessage) (interface{}, error) {
	_, circle, err := s.loadAndDetect(args)
	if err != nil {
		return nil, err
	}
	return s.measure(circle), nil
}

func (s *Server) handleBallAnnotate(args json.RawMessage) (interface{}, error) {
	img, circle, err := s.loadAndDetect(args)
	if err != nil {
		return nil, err
	}
	m := s.measure(circle)
	view := session.View{
		Circle:      circle,
		Result:      m.Measurement,
		Calibration: m.Calibration,
	}
	return imaging.EncodePNG(display.Annotate(img, view, s.style))
}
