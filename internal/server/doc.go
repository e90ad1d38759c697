// Package server implements the MCP (Model Context Protocol) front-end of
// ballmeter.
//
// It exposes the measurement pipeline as tools over still images, so an MCP
// client can detect a ball, calibrate and measure without a camera or an
// operator at the console.
//
// # Protocol
//
// Requests arrive on stdin as JSON-RPC 2.0 messages, one per line, and each
// response is written to stdout as a single line. Logs never go to stdout.
//
// Methods: initialize, ping, tools/list and tools/call. The
// notifications/initialized notification is accepted and not answered.
//
// # Available Tools
//
//   - ball_detect: Find the ball and report centre and radius
//   - ball_edges: Edge map of the detector, for diagnosing misses
//   - ball_calibrate: Set the pixel-to-millimetre ratio from a reference ball
//   - ball_set_density: Set the density factor for weight estimates
//   - ball_status: Current calibration
//   - ball_measure: Diameter, volume and weight of the ball in an image
//   - ball_annotate: The image with the ball and status drawn on it
//
// # Calibration
//
// The server owns one calibration for its lifetime, with the same rules as
// the live measurement loop: the ratio is set once, the density factor once
// after it, and neither can be changed afterwards. Rejected calibration
// requests are successful tool calls whose result has accepted=false and a
// reason.
//
// # Error Handling
//
// Unknown methods get -32601 and unparseable tools/call params -32602. A tool that
// fails (unreadable image, card reading unavailable) gets -32000 with the Go
// error string in data.
//
// # Usage
//
//	srv := server.New(server.Options{})
//	if err := srv.Run(os.Stdin, os.Stdout); err != nil {
//	    slog.Error("mcp server", "error", err)
//	}
package server
