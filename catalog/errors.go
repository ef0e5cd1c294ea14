package catalog

import "errors"

var (
	// ErrMissingKey is returned for a catalog entry without a key.
	ErrMissingKey = errors.New("clip key is required")

	// ErrMissingSource is returned for an entry with neither file nor url.
	ErrMissingSource = errors.New("clip needs a file or url")

	// ErrAmbiguousSource is returned for an entry with both file and url.
	ErrAmbiguousSource = errors.New("clip cannot have both file and url")

	// ErrDuplicateKey is returned when two entries share a key.
	ErrDuplicateKey = errors.New("duplicate clip key")
)
