package types

import "errors"

var (
	// ErrNotYetAvailable is expected and recoverable, come back later.
	ErrNotYetAvailable = errors.New("data not available yet")
	// ErrIncompleteDay means a day does not hold exactly the hours 0..23.
	ErrIncompleteDay = errors.New("incomplete day")
	// ErrUpstream covers network, status and decoding failures of a source.
	ErrUpstream = errors.New("upstream error")
	// ErrInvalidInput is returned by public boundaries before reaching the engines.
	ErrInvalidInput = errors.New("invalid input")
)
