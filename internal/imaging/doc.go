// Package imaging loads review images and renders annotation overlays.
//
// Loading accepts JPEG, PNG, BMP, TIFF, WebP and GIF. Rendering draws the
// current review state of an image (labels, predictions and the final set)
// on a copy of the image, optionally with brightness and contrast adjusted
// for easier inspection, and returns it as a base64 PNG.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Box rectangles are
// geometry.Rect values relative to the image origin and may extend past the
// image edge; drawing simply clips them.
//
// # Colors
//
//   - Kept labels: green
//   - Predictions: red, or amber when they disagree with the kept labels
//   - Final set (kept labels plus accepted predictions): blue
//   - Rejected labels: gray with a cross
//
// Accepted predictions carry a tick in their top-right corner.
package imaging
