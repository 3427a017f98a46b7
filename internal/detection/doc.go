// Package detection provides the object detection backends that produce
// prediction lines for review.
//
// Every backend implements Detector and returns YOLO-normalized lines with a
// confidence score. The package ships four backends:
//
//   - ONNXDetector: a YOLOv8-style ONNX model run through onnxruntime
//   - ShapeDetector: rectangles (class 0) and circles (class 1) found by edge
//     and contour analysis, intended for diagrams and synthetic data
//   - TextRegionDetector: edge-density text blocks (class 0)
//   - Sliced: a wrapper that tiles large images, runs an inner Detector per
//     tile and merges the results with non-maximum suppression
//
// # Coordinate System
//
// Pixel coordinates use the standard image convention: origin at the
// top-left, X rightward, Y downward. Lines are normalized against the size of
// the image passed to Predict.
//
// # Confidence Scores
//
// Confidence is in [0, 1]. How it is derived depends on the backend:
//   - ONNX: the highest class probability of the anchor
//   - Rectangles: rectangularity (contour length vs expected perimeter)
//   - Circles: edge votes in the Hough accumulator
//   - Text regions: edge density and horizontal structure
package detection
