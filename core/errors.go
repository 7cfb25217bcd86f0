package core

import "errors"

// Errors returned by the facade and by task application.
var (
	// ErrEmptyName is returned when a window name is empty.
	ErrEmptyName = errors.New("displayrunner: window name is empty")

	// ErrDuplicateName is returned when the name is held by another live window.
	ErrDuplicateName = errors.New("displayrunner: window name already in use")

	// ErrDuplicateOwner is returned when the owner already holds a live window.
	ErrDuplicateOwner = errors.New("displayrunner: owner already has a window")

	// ErrUnknownOwner is returned when the owner has no live window.
	ErrUnknownOwner = errors.New("displayrunner: owner has no window")

	// ErrUnsupportedFormat is returned for frames whose pixel format is not accepted.
	ErrUnsupportedFormat = errors.New("displayrunner: unsupported pixel format")

	// ErrInvalidFrame is returned for frames with bad dimensions or buffer length.
	ErrInvalidFrame = errors.New("displayrunner: invalid frame")

	// ErrShutdownInProgress is returned once the event loop has begun stopping.
	ErrShutdownInProgress = errors.New("displayrunner: shutdown in progress")

	// ErrInvalidTransition is returned when a window record would move backwards
	// or skip a state.
	ErrInvalidTransition = errors.New("displayrunner: invalid window state transition")

	// ErrLoopNotIdle is returned by EventLoop.Start on a loop that already left Idle.
	ErrLoopNotIdle = errors.New("displayrunner: event loop is not idle")
)
