package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrDanglingEdge is returned when an edge names an endpoint that is not
	// in the mirror.
	ErrDanglingEdge = errors.New("dangling edge reference")
	ErrUnknownKind  = errors.New("unknown node kind")
	// ErrNotExpandable is returned by sources asked to expand a kind they
	// have no relation pattern for.
	ErrNotExpandable = errors.New("node kind is not expandable")
	ErrInvalidSeed   = errors.New("invalid seed node id")
)

// AdapterError wraps a failure of an external neighbor source
type AdapterError struct {
	Source string
	Op     string
	Err    error
}

// NewAdapterError wraps err, returning nil for a nil error
func NewAdapterError(source, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *AdapterError
	if errors.As(err, &ae) {
		return err
	}
	return &AdapterError{Source: source, Op: op, Err: err}
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the source did not answer in time
func (e *AdapterError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}
