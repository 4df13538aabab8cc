package oauth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/authkeep/authkeep/internal/domain"
	"github.com/authkeep/authkeep/internal/oauth"
)

func TestAuthorizationCodeGrant(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	client := domain.Client{
		ID:            uuid.New(),
		ApplicationID: uuid.New(),
		Type:          domain.ClientTypeAuthorizationGrant,
		Secret:        "secret",
		Redirects:     []string{"https://app.example.com/cb"},
	}
	identityID := uuid.New()
	code := domain.OAuthToken{
		ID:          uuid.New(),
		Type:        domain.TokenTypeAuthorization,
		ClientID:    client.ID,
		IdentityID:  &identityID,
		RedirectURI: "https://app.example.com/cb",
		ExpiresIn:   600,
		Issuer:      cfg.Issuer,
		Scopes:      domain.ScopesFromNames("profile"),
		CreatedAt:   time.Now().UTC(),
	}

	tokens := newMemoryTokenRepo(code)
	svc := oauth.NewTokenService(newMemoryClientRepo(client), &memoryIdentityRepo{}, tokens, cfg, zap.NewNop())

	resp, err := svc.Grant(ctx, client, oauth.TokenRequest{
		GrantType:   domain.GrantAuthorizationCode,
		Code:        code.ID.String(),
		RedirectURI: "https://app.example.com/cb",
	})
	require.NoError(t, err)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, "profile", resp.Scope)
	require.NotEmpty(t, resp.RefreshToken)

	bearerID, err := uuid.Parse(resp.AccessToken)
	require.NoError(t, err)
	bearer, err := tokens.GetToken(ctx, bearerID)
	require.NoError(t, err)
	require.Equal(t, domain.TokenTypeBearer, bearer.Type)
	require.NotNil(t, bearer.IdentityID)
	require.Equal(t, identityID, *bearer.IdentityID)
	require.Equal(t, cfg.Issuer, bearer.Issuer)

	refreshID, err := uuid.Parse(resp.RefreshToken)
	require.NoError(t, err)
	refresh, err := tokens.GetToken(ctx, refreshID)
	require.NoError(t, err)
	require.Equal(t, domain.TokenTypeRefresh, refresh.Type)
	require.NotNil(t, refresh.ParentID)
	require.Equal(t, bearerID, *refresh.ParentID)

	// The code is single-use.
	_, err = svc.Grant(ctx, client, oauth.TokenRequest{
		GrantType:   domain.GrantAuthorizationCode,
		Code:        code.ID.String(),
		RedirectURI: "https://app.example.com/cb",
	})
	require.Error(t, err)
	require.Equal(t, oauth.ErrorInvalidGrant, oauth.AsError(err).Code)
}

func TestAuthorizationCodeGrantRedirectMismatch(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	client := domain.Client{
		ID:            uuid.New(),
		ApplicationID: uuid.New(),
		Type:          domain.ClientTypeAuthorizationGrant,
		Secret:        "secret",
	}
	code := domain.OAuthToken{
		ID:          uuid.New(),
		Type:        domain.TokenTypeAuthorization,
		ClientID:    client.ID,
		RedirectURI: "https://app.example.com/cb",
		ExpiresIn:   600,
		CreatedAt:   time.Now().UTC(),
	}

	tokens := newMemoryTokenRepo(code)
	svc := oauth.NewTokenService(newMemoryClientRepo(client), &memoryIdentityRepo{}, tokens, cfg, zap.NewNop())

	_, err := svc.Grant(ctx, client, oauth.TokenRequest{
		GrantType:   domain.GrantAuthorizationCode,
		Code:        code.ID.String(),
		RedirectURI: "https://app.example.com/other",
	})
	require.Error(t, err)
	require.Equal(t, oauth.ErrorInvalidRequest, oauth.AsError(err).Code)

	// The failed exchange still consumed the code.
	_, err = tokens.GetToken(ctx, code.ID)
	require.Error(t, err)
}

func TestAuthorizationCodeGrantWrongClient(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	owner := domain.Client{ID: uuid.New(), Type: domain.ClientTypeAuthorizationGrant, Secret: "a"}
	other := domain.Client{ID: uuid.New(), Type: domain.ClientTypeAuthorizationGrant, Secret: "b"}
	code := domain.OAuthToken{
		ID:          uuid.New(),
		Type:        domain.TokenTypeAuthorization,
		ClientID:    owner.ID,
		RedirectURI: "https://app.example.com/cb",
		ExpiresIn:   600,
		CreatedAt:   time.Now().UTC(),
	}

	tokens := newMemoryTokenRepo(code)
	svc := oauth.NewTokenService(newMemoryClientRepo(owner, other), &memoryIdentityRepo{}, tokens, cfg, zap.NewNop())

	_, err := svc.Grant(ctx, other, oauth.TokenRequest{
		GrantType:   domain.GrantAuthorizationCode,
		Code:        code.ID.String(),
		RedirectURI: "https://app.example.com/cb",
	})
	require.Error(t, err)
	require.Equal(t, oauth.ErrorInvalidGrant, oauth.AsError(err).Code)

	// The owner's code survives a foreign exchange attempt.
	_, err = tokens.GetToken(ctx, code.ID)
	require.NoError(t, err)
}

func TestAuthorizationCodeGrantExpired(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	client := domain.Client{ID: uuid.New(), Type: domain.ClientTypeAuthorizationGrant, Secret: "secret"}
	code := domain.OAuthToken{
		ID:          uuid.New(),
		Type:        domain.TokenTypeAuthorization,
		ClientID:    client.ID,
		RedirectURI: "https://app.example.com/cb",
		ExpiresIn:   60,
		CreatedAt:   time.Now().UTC().Add(-2 * time.Minute),
	}

	svc := oauth.NewTokenService(newMemoryClientRepo(client), &memoryIdentityRepo{}, newMemoryTokenRepo(code), cfg, zap.NewNop())

	_, err := svc.Grant(ctx, client, oauth.TokenRequest{
		GrantType:   domain.GrantAuthorizationCode,
		Code:        code.ID.String(),
		RedirectURI: "https://app.example.com/cb",
	})
	require.Error(t, err)
	require.Equal(t, oauth.ErrorInvalidGrant, oauth.AsError(err).Code)
}

func TestClientCredentialsGrant(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	client := domain.Client{
		ID:            uuid.New(),
		ApplicationID: uuid.New(),
		Type:          domain.ClientTypeClientCredentials,
		Secret:        "secret",
	}
	clients := newMemoryClientRepo(client)
	clients.scopes[client.ApplicationID] = domain.NewScopes(domain.ApplicationScope{ID: uuid.New(), Name: "reports"})

	tokens := newMemoryTokenRepo()
	svc := oauth.NewTokenService(clients, &memoryIdentityRepo{}, tokens, cfg, zap.NewNop())

	resp, err := svc.Grant(ctx, client, oauth.TokenRequest{
		GrantType: domain.GrantClientCredentials,
		Scope:     "reports",
	})
	require.NoError(t, err)
	require.Empty(t, resp.RefreshToken)
	require.Equal(t, "reports", resp.Scope)
	require.Equal(t, int64(600), resp.ExpiresIn)

	bearerID, err := uuid.Parse(resp.AccessToken)
	require.NoError(t, err)
	bearer, err := tokens.GetToken(ctx, bearerID)
	require.NoError(t, err)
	require.Nil(t, bearer.IdentityID)
	require.Equal(t, 1, tokens.count())
}

func TestOwnerCredentialsGrant(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	authenticator := domain.Authenticator{ID: uuid.New(), Type: domain.AuthenticatorPassword}
	client := domain.Client{
		ID:             uuid.New(),
		ApplicationID:  uuid.New(),
		Type:           domain.ClientTypeOwnerCredentials,
		Secret:         "secret",
		Authenticators: []domain.Authenticator{authenticator},
	}
	identity := domain.UserIdentity{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		AuthenticatorID: authenticator.ID,
		Type:            domain.AuthenticatorPassword,
		RemoteID:        "alice@example.com",
		PasswordHash:    mustHash("hunter22"),
	}

	clients := newMemoryClientRepo(client)
	tokens := newMemoryTokenRepo()
	svc := oauth.NewTokenService(clients, &memoryIdentityRepo{identities: []domain.UserIdentity{identity}}, tokens, cfg, zap.NewNop())

	resp, err := svc.Grant(ctx, client, oauth.TokenRequest{
		GrantType: domain.GrantPassword,
		Username:  "alice@example.com",
		Password:  "hunter22",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)

	bearerID, err := uuid.Parse(resp.AccessToken)
	require.NoError(t, err)
	bearer, err := tokens.GetToken(ctx, bearerID)
	require.NoError(t, err)
	require.NotNil(t, bearer.IdentityID)
	require.Equal(t, identity.ID, *bearer.IdentityID)
}

func TestOwnerCredentialsGrantUniformDenial(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	authenticator := domain.Authenticator{ID: uuid.New(), Type: domain.AuthenticatorPassword}
	client := domain.Client{
		ID:             uuid.New(),
		ApplicationID:  uuid.New(),
		Type:           domain.ClientTypeOwnerCredentials,
		Secret:         "secret",
		Authenticators: []domain.Authenticator{authenticator},
	}
	identity := domain.UserIdentity{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		AuthenticatorID: authenticator.ID,
		RemoteID:        "alice@example.com",
		PasswordHash:    mustHash("hunter22"),
	}

	tokens := newMemoryTokenRepo()
	svc := oauth.NewTokenService(newMemoryClientRepo(client), &memoryIdentityRepo{identities: []domain.UserIdentity{identity}}, tokens, cfg, zap.NewNop())

	// Wrong password and unknown username yield the same answer.
	for _, req := range []oauth.TokenRequest{
		{GrantType: domain.GrantPassword, Username: "alice@example.com", Password: "wrong"},
		{GrantType: domain.GrantPassword, Username: "nobody@example.com", Password: "hunter22"},
		{GrantType: domain.GrantPassword, Username: "", Password: ""},
	} {
		_, err := svc.Grant(ctx, client, req)
		require.Error(t, err)
		oauthErr := oauth.AsError(err)
		require.Equal(t, oauth.ErrorAccessDenied, oauthErr.Code)
		require.Equal(t, "Invalid credentials.", oauthErr.Description)
	}
	require.Equal(t, 0, tokens.count())
}

func TestRefreshTokenGrantRotation(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	client := domain.Client{
		ID:            uuid.New(),
		ApplicationID: uuid.New(),
		Type:          domain.ClientTypeAuthorizationGrant,
		Secret:        "secret",
	}
	identityID := uuid.New()
	sessionID := uuid.New()
	parentID := uuid.New()
	refresh := domain.OAuthToken{
		ID:         uuid.New(),
		Type:       domain.TokenTypeRefresh,
		ClientID:   client.ID,
		IdentityID: &identityID,
		ParentID:   &parentID,
		SessionID:  &sessionID,
		ExpiresIn:  3600,
		Issuer:     cfg.Issuer,
		Scopes:     domain.ScopesFromNames("email", "profile"),
		CreatedAt:  time.Now().UTC(),
	}

	tokens := newMemoryTokenRepo(refresh)
	svc := oauth.NewTokenService(newMemoryClientRepo(client), &memoryIdentityRepo{}, tokens, cfg, zap.NewNop())

	resp, err := svc.Grant(ctx, client, oauth.TokenRequest{
		GrantType:    domain.GrantRefreshToken,
		RefreshToken: refresh.ID.String(),
		Scope:        "email",
	})
	require.NoError(t, err)
	require.Equal(t, "email", resp.Scope)
	require.NotEqual(t, refresh.ID.String(), resp.RefreshToken)

	// The presented refresh token is consumed.
	_, err = tokens.GetToken(ctx, refresh.ID)
	require.Error(t, err)

	bearerID, err := uuid.Parse(resp.AccessToken)
	require.NoError(t, err)
	bearer, err := tokens.GetToken(ctx, bearerID)
	require.NoError(t, err)
	require.NotNil(t, bearer.SessionID)
	require.Equal(t, sessionID, *bearer.SessionID)

	// The rotated refresh token keeps the original grant's full scope.
	rotatedID, err := uuid.Parse(resp.RefreshToken)
	require.NoError(t, err)
	rotated, err := tokens.GetToken(ctx, rotatedID)
	require.NoError(t, err)
	require.Equal(t, "email profile", rotated.Scopes.String())
	require.NotNil(t, rotated.ParentID)
	require.Equal(t, bearerID, *rotated.ParentID)
}

func TestRefreshTokenGrantScopeEscalation(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	client := domain.Client{ID: uuid.New(), Type: domain.ClientTypeOwnerCredentials, Secret: "secret"}
	refresh := domain.OAuthToken{
		ID:        uuid.New(),
		Type:      domain.TokenTypeRefresh,
		ClientID:  client.ID,
		ExpiresIn: 3600,
		Scopes:    domain.ScopesFromNames("email"),
		CreatedAt: time.Now().UTC(),
	}

	tokens := newMemoryTokenRepo(refresh)
	svc := oauth.NewTokenService(newMemoryClientRepo(client), &memoryIdentityRepo{}, tokens, cfg, zap.NewNop())

	_, err := svc.Grant(ctx, client, oauth.TokenRequest{
		GrantType:    domain.GrantRefreshToken,
		RefreshToken: refresh.ID.String(),
		Scope:        "email admin",
	})
	require.Error(t, err)
	require.Equal(t, oauth.ErrorInvalidScope, oauth.AsError(err).Code)

	// The rejected request must not consume the refresh token: a
	// follow-up exchange within the granted scope still succeeds.
	_, err = tokens.GetToken(ctx, refresh.ID)
	require.NoError(t, err)

	resp, err := svc.Grant(ctx, client, oauth.TokenRequest{
		GrantType:    domain.GrantRefreshToken,
		RefreshToken: refresh.ID.String(),
		Scope:        "email",
	})
	require.NoError(t, err)
	require.Equal(t, "email", resp.Scope)
}

func TestRefreshTokenGrantExpired(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	client := domain.Client{ID: uuid.New(), Type: domain.ClientTypeAuthorizationGrant, Secret: "secret"}
	refresh := domain.OAuthToken{
		ID:        uuid.New(),
		Type:      domain.TokenTypeRefresh,
		ClientID:  client.ID,
		ExpiresIn: 60,
		CreatedAt: time.Now().UTC().Add(-2 * time.Minute),
	}

	svc := oauth.NewTokenService(newMemoryClientRepo(client), &memoryIdentityRepo{}, newMemoryTokenRepo(refresh), cfg, zap.NewNop())

	_, err := svc.Grant(ctx, client, oauth.TokenRequest{
		GrantType:    domain.GrantRefreshToken,
		RefreshToken: refresh.ID.String(),
	})
	require.Error(t, err)
	require.Equal(t, oauth.ErrorInvalidGrant, oauth.AsError(err).Code)
}

func TestGrantTypeGatedByClientType(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	tokens := newMemoryTokenRepo()

	machine := domain.Client{ID: uuid.New(), Type: domain.ClientTypeClientCredentials, Secret: "secret"}
	owner := domain.Client{ID: uuid.New(), Type: domain.ClientTypeOwnerCredentials, Secret: "secret"}
	svc := oauth.NewTokenService(newMemoryClientRepo(machine, owner), &memoryIdentityRepo{}, tokens, cfg, zap.NewNop())

	_, err := svc.Grant(ctx, machine, oauth.TokenRequest{GrantType: domain.GrantPassword, Username: "a", Password: "b"})
	require.Error(t, err)
	require.Equal(t, oauth.ErrorInvalidGrant, oauth.AsError(err).Code)

	_, err = svc.Grant(ctx, owner, oauth.TokenRequest{GrantType: domain.GrantClientCredentials})
	require.Error(t, err)
	require.Equal(t, oauth.ErrorInvalidGrant, oauth.AsError(err).Code)

	_, err = svc.Grant(ctx, machine, oauth.TokenRequest{GrantType: "token_exchange"})
	require.Error(t, err)
	require.Equal(t, oauth.ErrorUnsupportedGrantType, oauth.AsError(err).Code)

	// Grant type values are case-sensitive.
	_, err = svc.Grant(ctx, machine, oauth.TokenRequest{GrantType: "CLIENT_CREDENTIALS"})
	require.Error(t, err)
	require.Equal(t, oauth.ErrorUnsupportedGrantType, oauth.AsError(err).Code)

	require.Equal(t, 0, tokens.count())
}

func TestRefreshTokenGrantRejectsWrongTokenType(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	client := domain.Client{ID: uuid.New(), Type: domain.ClientTypeAuthorizationGrant, Secret: "secret"}
	bearer := domain.OAuthToken{
		ID:        uuid.New(),
		Type:      domain.TokenTypeBearer,
		ClientID:  client.ID,
		ExpiresIn: 600,
		CreatedAt: time.Now().UTC(),
	}

	tokens := newMemoryTokenRepo(bearer)
	svc := oauth.NewTokenService(newMemoryClientRepo(client), &memoryIdentityRepo{}, tokens, cfg, zap.NewNop())

	_, err := svc.Grant(ctx, client, oauth.TokenRequest{
		GrantType:    domain.GrantRefreshToken,
		RefreshToken: bearer.ID.String(),
	})
	require.Error(t, err)
	require.Equal(t, oauth.ErrorInvalidGrant, oauth.AsError(err).Code)

	// The bearer token is untouched.
	_, err = tokens.GetToken(ctx, bearer.ID)
	require.NoError(t, err)
}
