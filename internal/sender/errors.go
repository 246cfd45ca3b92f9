package sender

import (
	"errors"
	"fmt"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrNotAFile     = errors.New("not a regular file")
)

// ProtocolError is a non-200 answer from the receiver.
type ProtocolError struct {
	Op     string
	Status int
	Body   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.Status, e.Body)
}

// IncompleteError means every chunk was accepted but the receiver did not report completion.
type IncompleteError struct {
	Body string
}

func (e *IncompleteError) Error() string {
	return "transfer incomplete: " + e.Body
}
