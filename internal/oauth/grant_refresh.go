package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/authkeep/authkeep/internal/domain"
)

// refreshTokenGrant exchanges a refresh token for a fresh bearer token. The
// refresh token is rotated: the presented one is consumed and a new one is
// issued against the new bearer token, narrowing the replay window. A scope
// request, if present, must be a subset of the original grant, and is
// validated before the presented token is consumed so a rejected request
// leaves the refresh token intact.
func (s *TokenService) refreshTokenGrant(ctx context.Context, client domain.Client, req TokenRequest) (*TokenResponse, error) {
	ctx, span := startSpan(ctx, "TokenService.RefreshTokenGrant")
	defer span.End()

	if !client.Type.AllowsGrant(domain.GrantRefreshToken) {
		return nil, invalidGrant("The client may not use the refresh_token grant.")
	}

	refreshID, err := uuid.Parse(strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return nil, invalidGrant("The refresh token is invalid.")
	}

	refresh, err := s.tokens.GetToken(ctx, refreshID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, invalidGrant("The refresh token is invalid.")
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if refresh.Type != domain.TokenTypeRefresh || refresh.ClientID != client.ID {
		return nil, invalidGrant("The refresh token is invalid.")
	}
	if refresh.IsExpired() {
		return nil, invalidGrant("The refresh token has expired.")
	}

	scopes := refresh.Scopes
	if strings.TrimSpace(req.Scope) != "" {
		scopes, err = ValidateScope(req.Scope, refresh.Scopes)
		if err != nil {
			return nil, err
		}
	}

	// Consume only after every validation has passed. Under concurrent
	// exchange of the same token exactly one caller wins the delete.
	if _, err := s.tokens.ConsumeToken(ctx, refreshID, domain.TokenTypeRefresh, client.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalidGrant("The refresh token is invalid.")
		}
		span.RecordError(err)
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	bearer := newBearerToken(client, refresh.IdentityID, scopes, refresh.Issuer, s.cfg.AccessTokenTTL)
	bearer.SessionID = refresh.SessionID
	rotated := newRefreshToken(client, bearer, refresh.Scopes, s.cfg.RefreshTokenTTL)

	if err := s.tokens.CreateTokens(ctx, bearer, rotated); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.log().Info("refresh token rotated",
		zap.Stringer("client_id", client.ID),
		zap.Stringer("token_id", bearer.ID),
	)
	return newTokenResponse(bearer, &rotated), nil
}
