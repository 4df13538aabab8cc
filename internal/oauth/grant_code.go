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

// authorizationCodeGrant exchanges a single-use authorization code for a
// bearer token. The code is consumed atomically, so a concurrent second
// exchange of the same code fails invalid_grant.
func (s *TokenService) authorizationCodeGrant(ctx context.Context, client domain.Client, req TokenRequest) (*TokenResponse, error) {
	ctx, span := startSpan(ctx, "TokenService.AuthorizationCodeGrant")
	defer span.End()

	if !client.Type.AllowsGrant(domain.GrantAuthorizationCode) {
		return nil, invalidGrant("The client may not use the authorization_code grant.")
	}

	codeID, err := uuid.Parse(strings.TrimSpace(req.Code))
	if err != nil {
		return nil, invalidGrant("The authorization code is invalid.")
	}

	code, err := s.tokens.ConsumeToken(ctx, codeID, domain.TokenTypeAuthorization, client.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, invalidGrant("The authorization code is invalid.")
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("consume authorization code: %w", err)
	}
	if code.IsExpired() {
		return nil, invalidGrant("The authorization code has expired.")
	}
	if strings.TrimSpace(req.RedirectURI) != code.RedirectURI {
		return nil, invalidRequest("The redirect_uri does not match the authorization request.")
	}

	bearer := newBearerToken(client, code.IdentityID, code.Scopes, code.Issuer, s.cfg.AccessTokenTTL)
	issued := []domain.OAuthToken{bearer}

	var refresh *domain.OAuthToken
	if client.Type.IssuesRefresh() {
		r := newRefreshToken(client, bearer, code.Scopes, s.cfg.RefreshTokenTTL)
		refresh = &r
		issued = append(issued, r)
	}

	if err := s.tokens.CreateTokens(ctx, issued...); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.log().Info("authorization code exchanged",
		zap.Stringer("client_id", client.ID),
		zap.Stringer("token_id", bearer.ID),
	)
	return newTokenResponse(bearer, refresh), nil
}
