package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoResult          = errors.New("transformation returned no image")
	ErrUnsupportedType   = errors.New("unsupported attachment type")
	ErrTooLarge          = errors.New("attachment too large")
	ErrMissingAttachment = errors.New("event has no attachment")
	ErrEmptyInstruction  = errors.New("empty instruction")
)

// ValidationError short-circuits a job before any external call is made.
type ValidationError struct {
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// PublishError reports a non-2xx answer from the artifact host.
type PublishError struct {
	Status string
	Body   string
}

func (e *PublishError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("publish failed: %s", e.Status)
	}
	return fmt.Sprintf("publish failed: %s: %s", e.Status, e.Body)
}

// StageError attributes a job failure to the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// CorruptSnapshotError is returned by state backends whose canonical
// snapshot exists but cannot be decoded.
type CorruptSnapshotError struct {
	Err error
}

func (e *CorruptSnapshotError) Error() string {
	return fmt.Sprintf("corrupt state snapshot: %v", e.Err)
}

func (e *CorruptSnapshotError) Unwrap() error {
	return e.Err
}
