package audio

import "errors"

var (
	// ErrUnsupportedFormat is returned for sources whose extension maps to
	// no known decoder.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrTapClosed is returned when starting a playable whose tap was
	// already detached from the graph.
	ErrTapClosed = errors.New("analysis tap closed")

	// ErrAlreadyStarted is returned when a playable is started twice.
	ErrAlreadyStarted = errors.New("playable already started")

	// ErrForeignTap is returned when a tap handed to the engine was not
	// created by it.
	ErrForeignTap = errors.New("tap was not created by this engine")
)
