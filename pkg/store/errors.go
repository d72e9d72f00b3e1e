package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("message not found")
	ErrNotSender = errors.New("only the sender can delete a message for everyone")
	ErrEmptySend = errors.New("message has no content or attachments")
)

// StoreError wraps a network or persistence failure from the underlying log.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
