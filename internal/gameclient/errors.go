package gameclient

import (
	"errors"
	"fmt"
)

// ErrAuthExpired indicates the cached entitlement headers were rejected.
// Callers refresh credentials and retry once before treating it as fatal
// for the cycle.
var ErrAuthExpired = errors.New("gameclient: credentials expired")

// ErrNotFound indicates the player has no current match or presence. This
// is the idle signal, not a failure.
var ErrNotFound = errors.New("gameclient: no active match or presence")

// ErrClientNotRunning indicates the local game client lockfile is absent.
var ErrClientNotRunning = errors.New("gameclient: game client is not running")

// TransportError wraps network-level and 5xx failures. The fetch loop
// retries these with a fixed backoff before surfacing them.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gameclient: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}
