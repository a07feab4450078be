// Package connectivity decides whether the host has a network link and
// whether that link actually reaches the Internet.
//
// A Machine consumes link events from an Observer. Link-down events commit
// NoConnection straight away; link-up events run an Arbiter that races a
// ping against a DNS resolution and commits HasInternet or NoInternet. The
// last committed State is readable at any time without blocking.
package connectivity

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

type State int32

const (
	NoConnection State = iota
	NoInternet
	HasInternet
)

func (s State) String() string {
	switch s {
	case NoConnection:
		return "NO_CONNECTION"
	case NoInternet:
		return "NO_INTERNET"
	case HasInternet:
		return "HAS_INTERNET"
	default:
		return "INVALID_STATE"
	}
}

func (s State) MarshalText() ([]byte, error) {
	if s < NoConnection || s > HasInternet {
		return nil, errors.Errorf("invalid connectivity state %d", int32(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(b))) {
	case "NO_CONNECTION":
		*s = NoConnection
	case "NO_INTERNET":
		*s = NoInternet
	case "HAS_INTERNET":
		*s = HasInternet
	default:
		return errors.Errorf("unknown connectivity state %q", string(b))
	}
	return nil
}

// LinkEvent is one link-layer observation pushed by an Observer.
type LinkEvent struct {
	Online    bool
	ChangedAt time.Time
	Cause     string
}

// Transition is published to subscribers whenever the committed state changes.
type Transition struct {
	From  State     `json:"from"`
	To    State     `json:"to"`
	Link  bool      `json:"link"`
	At    time.Time `json:"at"`
	Cause string    `json:"cause,omitempty"`
}
