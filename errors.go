package fsrs

import "errors"

// Sentinel errors for the fsrs package.
// Use errors.Is to check: errors.Is(err, fsrs.ErrInvalidRating)
var (
	ErrInvalidRating     = errors.New("fsrs: invalid rating")
	ErrInvalidState      = errors.New("fsrs: invalid state")
	ErrInvalidParameters = errors.New("fsrs: invalid parameters")
	ErrCardIDMismatch    = errors.New("fsrs: card ID mismatch in review log")
)
