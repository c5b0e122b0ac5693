package upstream

import (
	"errors"
	"fmt"
)

// ProviderError reports that an upstream service was unavailable or returned
// a response that could not be used.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Op)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err unless it already is a ProviderError.
func NewProviderError(provider, op string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{
		Provider: provider,
		Op:       op,
		Err:      err,
	}
}

// IsProviderError reports whether err is, or wraps, a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
