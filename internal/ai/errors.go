package ai

import "errors"

// Failure kinds surfaced by every provider. Callers match with errors.Is and
// decide the next action themselves; no provider retries on its own.
var (
	// ErrAuth means the credentials are absent or were rejected by the backend.
	ErrAuth = errors.New("provider authentication failed")
	// ErrCall covers transport and API failures.
	ErrCall = errors.New("provider call failed")
	// ErrTimeout means the call exceeded its bounded wait.
	ErrTimeout = errors.New("provider call timed out")
)
