package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// pathSchema is the input schema of tools that take a single image path.
func pathSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Absolute path to the image file",
			},
		},
		"required": []string{"path"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Detection
		{
			Name:        "ball_detect",
			Description: "Detect the ball in an image. Returns the image dimensions and, when a ball is found, its centre and radius in whole pixels.",
			InputSchema: pathSchema(),
		},
		{
			Name:        "ball_edges",
			Description: "Return the detector's edge map of an image as base64-encoded PNG. Use this to check lighting and focus when no ball is detected.",
			InputSchema: pathSchema(),
		},

		// Calibration
		{
			Name: "ball_calibrate",
			Description: "Calibrate the pixel-to-millimetre ratio from the ball detected in an image and its real diameter. " +
				"Calibration happens once per server lifetime; later attempts are rejected. " +
				"A rejected attempt returns accepted=false with the reason and leaves the calibration unchanged.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to an image showing the reference ball",
					},
					"real_diameter_mm": map[string]interface{}{
						"type":        []string{"number", "string"},
						"description": "Real diameter of the reference ball in millimetres, e.g. 60 or \"60 mm\"",
					},
					"use_card": map[string]interface{}{
						"type":        "boolean",
						"description": "Read the diameter from a printed calibration card in the image instead. Requires a build with text recognition.",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ball_set_density",
			Description: "Set the density factor in g/cm3 used to estimate weight. Only accepted once, after calibration.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"value": map[string]interface{}{
						"type":        []string{"number", "string"},
						"description": "Density factor in g/cm3, e.g. 9 or \"9,0\"",
					},
				},
				"required": []string{"value"},
			},
		},
		{
			Name:        "ball_status",
			Description: "Return the calibration state, pixel-to-millimetre ratio and density factor.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Measurement
		{
			Name:        "ball_measure",
			Description: "Measure the ball in an image: diameter in millimetres, volume in cm3 and, once a density factor is set, weight in grams.",
			InputSchema: pathSchema(),
		},
		{
			Name:        "ball_annotate",
			Description: "Draw the detected ball and the measurement status on an image and return it as base64-encoded PNG.",
			InputSchema: pathSchema(),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
