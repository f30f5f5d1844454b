// Package app composes domain logic with storage and provider ports into
// the entitlement, billing, and webhook services.
package app

import (
	"errors"
	"fmt"
)

// Error taxonomy. Services return these kinds unmodified; the HTTP facade
// is the only layer that translates them into transport status codes.
var (
	// ErrUnauthenticated: no or invalid session credential.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNoBillingIdentity: the user has no billing customer linked yet.
	ErrNoBillingIdentity = errors.New("no billing identity")

	// ErrResolutionUnavailable: the subscription record could not be read.
	// Never papered over as the free tier; that would under-enforce
	// limits. The calling request fails instead.
	ErrResolutionUnavailable = errors.New("tier resolution unavailable")

	// ErrStoreUnavailable: the usage ledger could not be read or written.
	ErrStoreUnavailable = errors.New("usage store unavailable")

	// ErrUnknownTier: checkout requested for a tier not in the catalog.
	ErrUnknownTier = errors.New("unknown tier")
)

// ProviderError wraps an opaque billing provider failure. Provider detail
// is for logs only; callers surface a generic retry message.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("billing provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err is (or wraps) a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
