package oauth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/authkeep/authkeep/internal/domain"
)

// clientCredentialsGrant issues a bearer token for the client itself. No
// user identity is attached and no refresh token is ever issued.
func (s *TokenService) clientCredentialsGrant(ctx context.Context, client domain.Client, req TokenRequest) (*TokenResponse, error) {
	ctx, span := startSpan(ctx, "TokenService.ClientCredentialsGrant")
	defer span.End()

	if !client.Type.AllowsGrant(domain.GrantClientCredentials) {
		return nil, invalidGrant("The client may not use the client_credentials grant.")
	}

	registered, err := s.clients.GetApplicationScopes(ctx, client.ApplicationID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load application scopes: %w", err)
	}
	scopes, err := ValidateScope(req.Scope, registered)
	if err != nil {
		return nil, err
	}

	bearer := newBearerToken(client, nil, scopes, s.cfg.Issuer, s.cfg.AccessTokenTTL)
	if err := s.tokens.CreateTokens(ctx, bearer); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.log().Info("client credentials token issued",
		zap.Stringer("client_id", client.ID),
		zap.Stringer("token_id", bearer.ID),
	)
	return newTokenResponse(bearer, nil), nil
}
