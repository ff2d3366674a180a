// Package boterr defines the errors that are passed between the webhook
// provider, the event router and the sandbox executor.
package boterr

import (
	"errors"
	"fmt"
)

var (
	// ErrSignatureInvalid is returned when the signature of a webhook
	// delivery is missing or does not match the payload.
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	// ErrUnauthorized is wrapped by the decision error of events whose
	// actor is not on the allow-list.
	ErrUnauthorized = errors.New("actor is not authorized")
	// ErrMalformedPayload is wrapped by the decision error of events whose
	// payload lacks fields that are required to build a task.
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrSandboxUnavailable is returned when the sandbox image can not be
	// found by the container runtime or the executor was stopped.
	ErrSandboxUnavailable = errors.New("sandbox unavailable")
)

// SandboxExecutionError is returned when the agent command failed inside the
// sandbox or exceeded its lifetime.
type SandboxExecutionError struct {
	Message string
	Stdout  string
	Stderr  string
	// Logs are the container logs captured after the failure, they are
	// empty if capturing them failed.
	Logs     string
	TimedOut bool
	Err      error
}

func (e *SandboxExecutionError) Error() string {
	if e.Err == nil {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.Message, e.Err)
}

func (e *SandboxExecutionError) Unwrap() error {
	return e.Err
}
