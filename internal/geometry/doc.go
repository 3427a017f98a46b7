// Package geometry converts between YOLO label lines and pixel rectangles.
//
// A YOLO line has the form "class cx cy w h" where the four box values are
// normalized to the image size. Lines produced by this package always use six
// decimal places. Coordinates are never clamped: a box that extends past the
// image edge round-trips unchanged.
package geometry
