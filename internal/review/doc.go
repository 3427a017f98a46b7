// Package review holds per-image review state and the reconciliation rules
// between model predictions and existing labels.
//
// An ImageSession starts with every prediction rejected and every label kept.
// The reviewer toggles predictions on, toggles labels off and adjusts box
// geometry; CollectFinalLines then yields the kept labels followed by the
// accepted predictions.
//
// A prediction disagrees with the labels when its best IoU against the kept
// labels is zero or when the best-matching label has a different class.
// Disagreement flags are derived state: call FlagPredictions after every
// mutation.
//
// The engine is single-threaded. Callers serialise access to a session.
package review
