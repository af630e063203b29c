package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Contains(t, err.Error(), "boom")
}

func TestCloneKeepsCodeAndMatchesSentinel(t *testing.T) {
	err := Clone(ErrInvalidState, "delivery already finalized")
	assert.Equal(t, "delivery already finalized", err.Message)
	assert.Equal(t, ErrInvalidState.Status, err.Status)
	assert.True(t, stdErrors.Is(err, ErrInvalidState))
	assert.False(t, stdErrors.Is(err, ErrForbidden))
	assert.Equal(t, "transition not allowed from current state", ErrInvalidState.Message)
}

func TestUnavailableIsDetectableThroughWrapping(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	wrapped := fmt.Errorf("load deliveries: %w", Unavailable(cause, "delivery store unavailable"))

	assert.True(t, IsCode(wrapped, ErrUnavailable))
	assert.False(t, IsCode(wrapped, ErrNotFound))
	assert.True(t, stdErrors.Is(wrapped, cause))
	assert.Equal(t, http.StatusServiceUnavailable, FromError(wrapped).Status)
}
