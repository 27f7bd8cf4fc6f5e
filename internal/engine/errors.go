package engine

import (
	"errors"
	"fmt"
)

var (
	ErrNoDevices    = errors.New("no devices configured")
	ErrNoClient     = errors.New("device client is required")
	ErrNoStore      = errors.New("snapshot store is required")
	ErrPollTimedOut = errors.New("device poll timed out")
)

// ConnectionError reports that a device could not be reached or refused the
// session after all retries.
type ConnectionError struct {
	Device string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Device, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ClassificationError wraps a failure raised while evaluating one interface.
type ClassificationError struct {
	Key   Key
	Cause any
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("evaluate %s: %v", e.Key, e.Cause)
}
