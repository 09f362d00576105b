package argus

import "errors"

var (
	// ErrNotTrained is returned when prediction is attempted before the
	// models have been trained on a reference dataset.
	ErrNotTrained = errors.New("argus: model has not been trained, call Detect first")

	// ErrGeneMismatch is returned when the target gene vector differs
	// from the reference gene vector used at training time.
	ErrGeneMismatch = errors.New("argus: target and reference datasets have different genes")
)
