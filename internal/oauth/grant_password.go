package oauth

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/authkeep/authkeep/internal/domain"
)

// ownerCredentialsGrant implements the resource-owner password grant. Every
// credential failure surfaces as the same access_denied, so an observer
// cannot distinguish an unknown username from a wrong password.
func (s *TokenService) ownerCredentialsGrant(ctx context.Context, client domain.Client, req TokenRequest) (*TokenResponse, error) {
	ctx, span := startSpan(ctx, "TokenService.OwnerCredentialsGrant")
	defer span.End()

	if !client.Type.AllowsGrant(domain.GrantPassword) {
		return nil, invalidGrant("The client may not use the password grant.")
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || req.Password == "" {
		return nil, accessDenied("Invalid credentials.")
	}

	authenticator, ok := client.PasswordAuthenticator()
	if !ok {
		return nil, accessDenied("Invalid credentials.")
	}

	identity, err := s.identities.GetIdentity(ctx, authenticator.ID, username)
	if err != nil {
		s.log().Debug("owner credentials lookup failed", zap.Stringer("client_id", client.ID), zap.Error(err))
		return nil, accessDenied("Invalid credentials.")
	}
	if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(req.Password)) != nil {
		return nil, accessDenied("Invalid credentials.")
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

	identityID := identity.ID
	bearer := newBearerToken(client, &identityID, scopes, s.cfg.Issuer, s.cfg.AccessTokenTTL)
	refresh := newRefreshToken(client, bearer, scopes, s.cfg.RefreshTokenTTL)

	if err := s.tokens.CreateTokens(ctx, bearer, refresh); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.log().Info("owner credentials token issued",
		zap.Stringer("client_id", client.ID),
		zap.Stringer("identity_id", identity.ID),
		zap.Stringer("token_id", bearer.ID),
	)
	return newTokenResponse(bearer, &refresh), nil
}
