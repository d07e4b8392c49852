package vtable

import (
	"errors"
)

// Status is the host-facing result code of a callback.
type Status int

// Status codes reported to the host.
const (
	StatusOK Status = iota
	StatusError
	StatusNoMem
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoMem:
		return "nomem"
	}
	return "error"
}

var (
	// ErrSchema is returned by connect when the host rejects the declared schema.
	ErrSchema = errors.New("schema declaration rejected")
	// ErrNoMem reports an allocation failure.
	ErrNoMem = errors.New("out of memory")
	// ErrClosed is returned on a handle that was already disconnected or closed.
	ErrClosed = errors.New("handle closed")
)

// StatusOf collapses an error to the status code the host sees.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNoMem):
		return StatusNoMem
	}
	return StatusError
}
