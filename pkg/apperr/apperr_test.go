package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThrottledWrapsCause(t *testing.T) {
	cause := errors.New("status 429")
	err := Throttled("embed batch", cause)

	assert.True(t, IsThrottled(err))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "embed batch")
}

func TestClassifiersAreDisjoint(t *testing.T) {
	throttled := Throttled("op", errors.New("x"))
	unavailable := Unavailable("op", errors.New("y"))

	assert.True(t, IsThrottled(throttled))
	assert.False(t, IsUnavailable(throttled))

	assert.True(t, IsUnavailable(unavailable))
	assert.False(t, IsThrottled(unavailable))
}

func TestClassifiersSurviveFurtherWrapping(t *testing.T) {
	err := fmt.Errorf("parse: %w", Throttled("upload", errors.New("429")))
	assert.True(t, IsThrottled(err))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(InvalidInput("empty question")))
	assert.False(t, IsRetryable(DimensionMismatch(768, 1536)))

	assert.True(t, IsRetryable(Throttled("op", errors.New("429"))))
	assert.True(t, IsRetryable(Unavailable("op", errors.New("503"))))
	assert.True(t, IsRetryable(errors.New("connection reset")))
}

func TestDimensionMismatchMessage(t *testing.T) {
	err := DimensionMismatch(768, 1536)
	assert.True(t, IsDimensionMismatch(err))
	assert.Contains(t, err.Error(), "768")
	assert.Contains(t, err.Error(), "1536")
}
