package ai

import (
	"errors"
	"fmt"
)

// ErrEngineNotInitialized is returned by Generate before a model is loaded.
var ErrEngineNotInitialized = errors.New("AI engine not initialized")

// EngineNotInitializedError is the typed form of ErrEngineNotInitialized.
type EngineNotInitializedError struct{}

func (e *EngineNotInitializedError) Error() string {
	return ErrEngineNotInitialized.Error()
}

// Is matches ErrEngineNotInitialized.
func (e *EngineNotInitializedError) Is(target error) bool {
	return target == ErrEngineNotInitialized
}

// UnsupportedPlatformError is returned when the host lacks the hardware
// acceleration the runtime needs.
type UnsupportedPlatformError struct {
	Reason string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %s", e.Reason)
}

// UnknownModelError is returned for ids missing from the catalog.
type UnknownModelError struct {
	ID string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.ID)
}
