package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
	"time"
)

func TestRateLimitError(t *testing.T) {
	err := NewRateLimitError("slow down")

	if err.Error() != "slow down" {
		t.Fatalf("Error message = %q, want %q", err.Error(), "slow down")
	}

	if !IsRateLimitError(err) {
		t.Fatalf("IsRateLimitError returned false for RateLimitError")
	}

	wrapped := fmt.Errorf("googlebooks search: %w", err)
	if !IsRateLimitError(wrapped) {
		t.Fatalf("IsRateLimitError returned false for wrapped RateLimitError")
	}
}

func TestRateLimitErrorWithRetry(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{name: "zero", duration: 0, expected: "rate limited"},
		{name: "30 seconds", duration: 30 * time.Second, expected: "rate limited (retry after 30s)"},
		{name: "2 minutes", duration: 2 * time.Minute, expected: "rate limited (retry after 2m0s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRateLimitErrorWithRetry("rate limited", tt.duration)
			if err.Error() != tt.expected {
				t.Fatalf("Error message = %q, want %q", err.Error(), tt.expected)
			}
		})
	}
}

func TestStopProcessingError(t *testing.T) {
	err := NewStopProcessingError("user stopped")

	if !IsStopProcessingError(stdErrors.Join(err)) {
		t.Fatalf("IsStopProcessingError returned false for wrapped StopProcessingError")
	}
}

func TestProviderNotRegisteredError(t *testing.T) {
	err := fmt.Errorf("refresh: %w", NewProviderNotRegisteredError("Amazon"))

	if !stdErrors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("errors.Is did not match ErrProviderNotRegistered")
	}
	if !IsProviderNotRegistered(err) {
		t.Fatalf("IsProviderNotRegistered returned false")
	}

	var pErr *ProviderNotRegisteredError
	if !stdErrors.As(err, &pErr) || pErr.Provider != "Amazon" {
		t.Fatalf("expected provider Amazon, got %+v", pErr)
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("library", 7)

	if err.Error() != "library 7 not found" {
		t.Fatalf("Error message = %q", err.Error())
	}
	if !IsNotFound(fmt.Errorf("load: %w", err)) {
		t.Fatalf("IsNotFound returned false for wrapped NotFoundError")
	}
	if IsNotFound(ErrMetadataLocked) {
		t.Fatalf("IsNotFound matched an unrelated error")
	}
}

func TestLockedFieldsError(t *testing.T) {
	err := NewLockedFieldsError([]string{"title", "authors"})

	if err.Error() != "fields are locked: title, authors" {
		t.Fatalf("Error message = %q", err.Error())
	}
	if !IsLockedFields(stdErrors.Join(err)) {
		t.Fatalf("IsLockedFields returned false for wrapped LockedFieldsError")
	}
}
