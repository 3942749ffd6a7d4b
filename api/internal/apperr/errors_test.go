package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesOnlyItsCode(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{InvalidInput("bad"), ErrInvalidInput},
		{ModelInvocation(errors.New("dial")), ErrModelInvocation},
		{ModelOutput("{}", nil), ErrModelOutput},
		{NotFound("disease", "x"), ErrNotFound},
	}
	all := []error{ErrInvalidInput, ErrModelInvocation, ErrModelOutput, ErrNotFound}

	for _, tc := range cases {
		for _, s := range all {
			assert.Equal(t, s == tc.sentinel, errors.Is(tc.err, s), "%v vs %v", tc.err, s)
		}
	}
}

func TestModelInvocationKeepsCause(t *testing.T) {
	err := fmt.Errorf("diagnose: %w", ModelInvocation(context.DeadlineExceeded))

	assert.ErrorIs(t, err, ErrModelInvocation)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, CodeModelInvocation, CodeOf(err))
}

func TestModelOutputCarriesRaw(t *testing.T) {
	err := ModelOutput("not json", errors.New("invalid character"), "identification is required")

	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "not json", ae.Raw)
	assert.False(t, ae.Retryable)
	assert.Contains(t, ae.Error(), "identification is required")
	assert.Contains(t, ae.Error(), "invalid character")
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("boom")))
	assert.False(t, IsRetryable(errors.New("boom")))
}
