package generation

import "errors"

var (
	// ErrNotFound is returned when no log matches the identifier.
	ErrNotFound = errors.New("generation not found")
	// ErrInvalidTransition is returned when a status change would skip, reverse, or overwrite a terminal state.
	ErrInvalidTransition = errors.New("invalid generation status transition")
	// ErrNotebookAlreadySet is returned when a log already carries a notebook id.
	ErrNotebookAlreadySet = errors.New("notebook id already recorded")
)
