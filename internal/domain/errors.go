package domain

import (
	"errors"
	"fmt"
)

// Input errors are reported to the user immediately and never retried.
var (
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	ErrFileNotFound      = errors.New("file not found")
	ErrMalformedData     = errors.New("malformed dataset: no parseable header row")
	ErrEmptyTask         = errors.New("task description is empty")
)

// Auth errors require user action (re-login); they are never retried automatically.
var (
	ErrAuthentication    = errors.New("not authenticated")
	ErrAuthTimeout       = errors.New("timed out waiting for OAuth callback")
	ErrCredentialExpired = errors.New("credential expired and refresh failed, please log in again")
)

// Lookup and conflict errors.
var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrJobNotFound      = errors.New("training job not found")
	ErrRepositoryExists = errors.New("repository already exists")
)

// GenerationError is a non-retriable failure from the code generation
// endpoint. The provider's message is preserved verbatim so the user can
// act on it (invalid key, quota exceeded, ...).
type GenerationError struct {
	StatusCode int
	Message    string
}

func (e *GenerationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("code generation failed (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("code generation failed: %s", e.Message)
}

// TrainingError reports a failed training run with the diagnostic output
// captured from the process or backend.
type TrainingError struct {
	ExitCode int
	Output   string
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training failed with exit code %d: %s", e.ExitCode, e.Output)
}
