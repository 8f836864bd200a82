package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy of provider calls.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorProviderOutage ErrorCategory = "provider_outage"
	ErrorInternal       ErrorCategory = "internal"
)

// ProviderError wraps provider failures with normalized categorization.
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.ProviderID, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Underlying }

// NewProviderError classifies context errors as timeouts.
func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	if errors.Is(underlying, context.DeadlineExceeded) || errors.Is(underlying, context.Canceled) {
		category = ErrorTimeout
	}
	return &ProviderError{Category: category, ProviderID: providerID, Message: message, Underlying: underlying}
}
