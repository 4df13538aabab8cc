package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/authkeep/authkeep/internal/domain"
)

// ClientRepository loads registered clients and their application scopes.
type ClientRepository interface {
	GetClient(ctx context.Context, id uuid.UUID) (domain.Client, error)
	GetApplicationScopes(ctx context.Context, applicationID uuid.UUID) (domain.Scopes, error)
}

// IdentityRepository loads user identities registered on an authenticator.
type IdentityRepository interface {
	GetIdentity(ctx context.Context, authenticatorID uuid.UUID, remoteID string) (domain.UserIdentity, error)
	GetIdentityByID(ctx context.Context, id uuid.UUID) (domain.UserIdentity, error)
}

// TokenRepository persists issued credentials.
//
// CreateTokens writes all tokens in one transaction so a half-issued
// bearer/refresh pair is never observable. ConsumeToken atomically removes
// and returns a token matching id, type, and owning client; under
// concurrent consumption of the same token exactly one call succeeds and
// the rest see pgx.ErrNoRows. DeleteToken cascades to any child whose
// parent is the deleted token.
type TokenRepository interface {
	CreateTokens(ctx context.Context, tokens ...domain.OAuthToken) error
	GetToken(ctx context.Context, id uuid.UUID) (domain.OAuthToken, error)
	ConsumeToken(ctx context.Context, id uuid.UUID, tokenType domain.TokenType, clientID uuid.UUID) (domain.OAuthToken, error)
	DeleteToken(ctx context.Context, id uuid.UUID) error
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// StateStore keeps the ephemeral authenticator correlation records with a
// TTL. GetState returns (nil, nil) for an unknown or expired id.
type StateStore interface {
	SaveState(ctx context.Context, state domain.AuthenticatorState, ttl time.Duration) error
	GetState(ctx context.Context, id uuid.UUID) (*domain.AuthenticatorState, error)
	DeleteState(ctx context.Context, id uuid.UUID) error
}
