package mesh

import "errors"

var (
	// ErrInvalidConfig is returned by New when the configuration fails
	// validation; nothing is allocated in that case.
	ErrInvalidConfig = errors.New("mesh: invalid config")

	// ErrPayloadSize is returned by Send for empty payloads and payloads
	// over frame.PayloadCap.
	ErrPayloadSize = errors.New("mesh: bad payload size")

	// ErrBusy is returned by Send when less than half of the work queue
	// is free.
	ErrBusy = errors.New("mesh: work queue busy")

	// ErrNotServing is returned by Send after Close.
	ErrNotServing = errors.New("mesh: not serving")

	// ErrAlreadyServing is returned by Serve when the worker is already
	// running.
	ErrAlreadyServing = errors.New("mesh: already serving")

	// ErrLinkMTU is returned by New when the wire frame does not fit the
	// link's MTU.
	ErrLinkMTU = errors.New("mesh: frame exceeds link MTU")
)
