// Package ocr turns Tesseract word boxes into review predictions.
//
// WordDetector implements detection.Detector: every recognised word becomes a
// class-0 box whose confidence is Tesseract's word confidence scaled to
// [0, 1]. It is useful for correcting document and signage datasets where
// the labelled objects are words.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// The package builds with cgo against libtesseract through gosseract.
package ocr
