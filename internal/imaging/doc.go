// Package imaging provides the frame plumbing shared by the measurement loop,
// the render sinks and the MCP tools.
//
// It covers three areas:
//   - Loading: a thread-safe ImageCache that decodes still frames with EXIF
//     auto-orientation, plus directory listing for file-based sources.
//   - Geometry: letterboxing a frame onto a fixed screen size, cropping
//     regions (used to isolate a calibration card for OCR), and PNG encoding
//     for JSON transport.
//   - Annotation: a Canvas that draws circle outlines, dots and text labels
//     over a copy of a frame. Colours are given as "#RRGGBB" or "#RRGGBBAA";
//     translucent colours are blended in Lab space.
//
// # Coordinate System
//
// Coordinates are 0-based with (0,0) at the top-left corner, X increasing
// rightward and Y increasing downward. Rectangles follow image.Rectangle:
// Min is inclusive, Max is exclusive.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Canvas is not; each render call
// creates its own.
package imaging
