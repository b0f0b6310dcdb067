package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tripcraft/tripsync/internal/domain"
)

func TestRetryable(t *testing.T) {
	cases := []struct {
		kind domain.ErrorKind
		want bool
	}{
		{domain.KindNetwork, true},
		{domain.KindTimeout, true},
		{domain.KindServer, true},
		{domain.KindAuth, false},
		{domain.KindValidation, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			err := domain.NewSyncError(tc.kind, 0, errors.New("boom"))
			assert.Equal(t, tc.want, domain.Retryable(err))
		})
	}
}

func TestRetryable_unclassifiedError(t *testing.T) {
	assert.False(t, domain.Retryable(errors.New("plain error")))
	assert.False(t, domain.Retryable(nil))
}

// TestKindOf_wrapped verifies classification survives fmt.Errorf wrapping,
// which the engine applies at every layer boundary.
func TestKindOf_wrapped(t *testing.T) {
	inner := domain.NewSyncError(domain.KindAuth, 401, errors.New("token expired"))
	wrapped := fmt.Errorf("sync.Engine.pushOne: %w", inner)

	assert.Equal(t, domain.KindAuth, domain.KindOf(wrapped))
	assert.Equal(t, domain.ErrorKind(""), domain.KindOf(errors.New("other")))
}

func TestSyncError_Error(t *testing.T) {
	withStatus := domain.NewSyncError(domain.KindServer, 503, errors.New("unavailable"))
	assert.Contains(t, withStatus.Error(), "503")
	assert.Contains(t, withStatus.Error(), "server")

	noStatus := domain.NewSyncError(domain.KindNetwork, 0, errors.New("refused"))
	assert.Contains(t, noStatus.Error(), "network")
	assert.NotContains(t, noStatus.Error(), "status")
}

func TestSyncError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := domain.NewSyncError(domain.KindNetwork, 0, cause)
	assert.ErrorIs(t, err, cause)
}
