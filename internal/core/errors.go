package core

import "errors"

var (
	// ErrSourceUnavailable is returned when a device or file cannot be opened.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrEndOfStream signals that a source has no more frames. It is a normal
	// terminal signal, not a failure.
	ErrEndOfStream = errors.New("end of stream")

	// ErrStorageWrite is returned when a face crop cannot be persisted.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrDetectorFailure is returned when the detection capability fails.
	ErrDetectorFailure = errors.New("face detector failed")

	// ErrInvalidState is returned when an operation is not allowed in the
	// current pipeline state.
	ErrInvalidState = errors.New("invalid pipeline state")
)
