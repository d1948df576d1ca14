package engine

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is matched by NotInitializedError through errors.Is.
var ErrNotInitialized = errors.New("database engine not initialized")

// EngineInitError is returned when the database engine could not be started.
// The underlying error is preserved.
type EngineInitError struct {
	Stage string
	Err   error
}

func (e *EngineInitError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("failed to initialize database engine: %v", e.Err)
	}
	return fmt.Sprintf("failed to initialize database engine (%s): %v", e.Stage, e.Err)
}

func (e *EngineInitError) Unwrap() error { return e.Err }

// NotInitializedError is returned when the handle is requested before a
// successful Init.
type NotInitializedError struct{}

func (e *NotInitializedError) Error() string { return ErrNotInitialized.Error() }

// Is reports whether target is ErrNotInitialized.
func (e *NotInitializedError) Is(target error) bool { return target == ErrNotInitialized }
