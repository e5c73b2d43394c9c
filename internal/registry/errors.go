package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned by Select for a position past the end
	// of the registry. The previous selection is kept.
	ErrIndexOutOfRange = errors.New("registry: index out of range")

	// ErrNoSelection is returned when nothing is selected or the selected
	// connection is no longer in the registry.
	ErrNoSelection = errors.New("registry: no connection selected")
)

// WriteError is a failed write to one connection.
type WriteError struct {
	Addr string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("registry: write to %s: %v", e.Addr, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
