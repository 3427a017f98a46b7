// Package session builds the review queue for a batch of images and drives
// review over it: navigation, box edits, previews and saving every reviewed
// image back to the corrected label directory.
//
// The batch pipeline runs to completion before review begins. After that all
// controller operations are synchronous and expect a single caller at a time;
// transports serialise requests before reaching the controller.
package session
