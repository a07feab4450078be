package connectivity

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned by a Resolver when the name definitively does
	// not exist.
	ErrNotFound = errors.New("host not found")
	// ErrProbeUnavailable is returned by a Pinger that could not run at all.
	ErrProbeUnavailable = errors.New("probe unavailable")
	// ErrAlreadyStarted is returned by Machine.Start on a second call.
	ErrAlreadyStarted = errors.New("connectivity machine already started")
)
