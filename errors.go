package main

import "errors"

var (
	// ErrEmptyInput is returned when there is no text to process. Callers
	// treat it as "nothing to compute", not as a failure.
	ErrEmptyInput = errors.New("input text is empty")

	ErrLengthMismatch   = errors.New("vector lengths differ")
	ErrUnknownPolicy    = errors.New("unknown classification policy")
	ErrInvalidAnswer    = errors.New("answer index out of range")
	ErrQuestionNotFound = errors.New("question not found")
	ErrInvalidQuestion  = errors.New("invalid question")
)
