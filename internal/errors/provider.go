package errors

import (
	"errors"
	"fmt"
)

// ErrProviderNotRegistered is returned when a refresh names a provider that has
// no adapter in the registry. It is a configuration error, not a fetch failure.
var ErrProviderNotRegistered = errors.New("provider not registered")

// ProviderNotRegisteredError identifies which provider was missing.
type ProviderNotRegisteredError struct {
	Provider string
}

func (e *ProviderNotRegisteredError) Error() string {
	return fmt.Sprintf("provider %q not registered", e.Provider)
}

// Is lets errors.Is match ErrProviderNotRegistered.
func (e *ProviderNotRegisteredError) Is(target error) bool {
	return target == ErrProviderNotRegistered
}

// NewProviderNotRegisteredError creates a ProviderNotRegisteredError.
func NewProviderNotRegisteredError(provider string) *ProviderNotRegisteredError {
	return &ProviderNotRegisteredError{Provider: provider}
}

// IsProviderNotRegistered reports whether err names an unregistered provider.
func IsProviderNotRegistered(err error) bool {
	return errors.Is(err, ErrProviderNotRegistered)
}
