// Package apperr defines the error taxonomy shared by the ingestion and
// answer pipelines. Stages return these typed errors so callers can decide
// between retry, backoff and user-facing degradation; only the outermost
// answer boundary flattens them into friendly text.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrThrottled signals an upstream rate limit (parser, embedder or LLM).
	// Ingestion backs off and retries; the chat path degrades with the
	// rate-limit message.
	ErrThrottled = errors.New("upstream throttled")

	// ErrUnavailable signals a network or service failure after bounded
	// retries were exhausted.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrInvalidInput signals a malformed or empty input a caller must fix.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch signals that the configured embedding model and
	// the live vector collection disagree on dimensionality. Fatal at
	// startup: indexing through the mismatch would silently corrupt
	// similarity rankings.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Throttled wraps err so that errors.Is(result, ErrThrottled) holds.
func Throttled(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrThrottled, err))
}

// Unavailable wraps err so that errors.Is(result, ErrUnavailable) holds.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrUnavailable, err))
}

func InvalidInput(op string) error {
	return fmt.Errorf("%s: %w", op, ErrInvalidInput)
}

func DimensionMismatch(want, got int) error {
	return fmt.Errorf("collection dimension %d, configured %d: %w", got, want, ErrDimensionMismatch)
}

func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsDimensionMismatch(err error) bool {
	return errors.Is(err, ErrDimensionMismatch)
}

// IsRetryable reports whether a retry can plausibly change the outcome.
// Caller mistakes and configuration faults are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrDimensionMismatch) {
		return false
	}
	return true
}
