package remote

import (
	"context"
	"errors"

	"github.com/tripcraft/tripsync/internal/domain"
)

// CredentialProvider supplies the bearer token attached to every remote
// request. Token acquisition and refresh are external concerns; the sync
// engine only consumes the current credential. A provider that cannot
// produce a token should return an error, which the client surfaces as an
// auth failure (never retried).
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticCredentials is a CredentialProvider holding a fixed token, e.g. an
// API token read from configuration at startup.
type StaticCredentials struct {
	token string
}

// NewStaticCredentials returns a provider that always yields token.
func NewStaticCredentials(token string) *StaticCredentials {
	return &StaticCredentials{token: token}
}

// Token implements CredentialProvider.
func (c *StaticCredentials) Token(context.Context) (string, error) {
	if c.token == "" {
		return "", domain.NewSyncError(domain.KindAuth, 0, errors.New("no credential configured"))
	}
	return c.token, nil
}
