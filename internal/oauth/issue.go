package oauth

import (
	"time"

	"github.com/google/uuid"

	"github.com/authkeep/authkeep/internal/domain"
)

// TokenResponse is the JSON body returned by the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

func newBearerToken(client domain.Client, identityID *uuid.UUID, scopes domain.Scopes, issuer string, defaultTTL time.Duration) domain.OAuthToken {
	return domain.OAuthToken{
		ID:         uuid.New(),
		Type:       domain.TokenTypeBearer,
		ClientID:   client.ID,
		IdentityID: identityID,
		ExpiresIn:  ttlSeconds(client.AccessTokenTTL, defaultTTL),
		Issuer:     issuer,
		Scopes:     scopes,
		CreatedAt:  time.Now().UTC(),
	}
}

func newRefreshToken(client domain.Client, parent domain.OAuthToken, scopes domain.Scopes, defaultTTL time.Duration) domain.OAuthToken {
	parentID := parent.ID
	return domain.OAuthToken{
		ID:         uuid.New(),
		Type:       domain.TokenTypeRefresh,
		ClientID:   client.ID,
		IdentityID: parent.IdentityID,
		ParentID:   &parentID,
		SessionID:  parent.SessionID,
		ExpiresIn:  ttlSeconds(client.RefreshTokenTTL, defaultTTL),
		Issuer:     parent.Issuer,
		Scopes:     scopes,
		CreatedAt:  time.Now().UTC(),
	}
}

func newAuthorizationCode(client domain.Client, identityID *uuid.UUID, scopes domain.Scopes, redirectURI, issuer string, defaultTTL time.Duration) domain.OAuthToken {
	return domain.OAuthToken{
		ID:          uuid.New(),
		Type:        domain.TokenTypeAuthorization,
		ClientID:    client.ID,
		IdentityID:  identityID,
		RedirectURI: redirectURI,
		ExpiresIn:   ttlSeconds(client.AuthCodeTTL, defaultTTL),
		Issuer:      issuer,
		Scopes:      scopes,
		CreatedAt:   time.Now().UTC(),
	}
}

func newTokenResponse(bearer domain.OAuthToken, refresh *domain.OAuthToken) *TokenResponse {
	resp := &TokenResponse{
		AccessToken: bearer.ID.String(),
		TokenType:   "Bearer",
		ExpiresIn:   bearer.ExpiresIn,
		Scope:       bearer.Scopes.String(),
	}
	if refresh != nil {
		resp.RefreshToken = refresh.ID.String()
	}
	return resp
}

func ttlSeconds(override, fallback time.Duration) int64 {
	if override > 0 {
		return int64(override.Seconds())
	}
	return int64(fallback.Seconds())
}
