package domain

import (
	"time"

	"github.com/google/uuid"
)

// Grant type values accepted by the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
)

// Response type values accepted by the authorize endpoint.
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// AuthenticatorPassword is the built-in username/password authenticator type.
const AuthenticatorPassword = "password"

// ClientType mirrors the RFC 6749 §4.1-4.4 client archetypes. The type
// decides which grants, response types, and token shapes are legal.
type ClientType string

const (
	ClientTypeAuthorizationGrant ClientType = "AuthorizationGrant"
	ClientTypeImplicit           ClientType = "Implicit"
	ClientTypeOwnerCredentials   ClientType = "OwnerCredentials"
	ClientTypeClientCredentials  ClientType = "ClientCredentials"
)

// AllowsGrant reports whether the client type may use the given grant type
// at the token endpoint.
func (t ClientType) AllowsGrant(grantType string) bool {
	switch t {
	case ClientTypeAuthorizationGrant:
		return grantType == GrantAuthorizationCode || grantType == GrantRefreshToken
	case ClientTypeOwnerCredentials:
		return grantType == GrantPassword || grantType == GrantRefreshToken
	case ClientTypeClientCredentials:
		return grantType == GrantClientCredentials
	default:
		return false
	}
}

// AllowsResponseType reports whether the client type may use the given
// response type at the authorize endpoint.
func (t ClientType) AllowsResponseType(responseType string) bool {
	switch t {
	case ClientTypeAuthorizationGrant:
		return responseType == ResponseTypeCode
	case ClientTypeImplicit:
		return responseType == ResponseTypeToken
	default:
		return false
	}
}

// IssuesRefresh reports whether tokens issued to this client type are
// paired with a refresh token. Client-credentials and implicit clients
// never receive refresh tokens.
func (t ClientType) IssuesRefresh() bool {
	return t == ClientTypeAuthorizationGrant || t == ClientTypeOwnerCredentials
}

// Authenticator is one identity-verification strategy configured on a
// client, selected by type at authorize time.
type Authenticator struct {
	ID        uuid.UUID
	ClientID  uuid.UUID
	Type      string
	Config    map[string]string
	CreatedAt time.Time
}

// Client is a registered application endpoint.
type Client struct {
	ID             uuid.UUID
	ApplicationID  uuid.UUID
	Name           string
	Type           ClientType
	Secret         string
	Redirects      []string
	Referrers      []string
	Authenticators []Authenticator

	// Per-client expiry overrides. Zero means the server default applies.
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AuthCodeTTL     time.Duration

	Config    map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Confidential reports whether the client authenticates with a secret.
func (c Client) Confidential() bool {
	return c.Secret != ""
}

// PasswordAuthenticator returns the client's password authenticator, if one
// is configured.
func (c Client) PasswordAuthenticator() (Authenticator, bool) {
	for _, a := range c.Authenticators {
		if a.Type == AuthenticatorPassword {
			return a, true
		}
	}
	return Authenticator{}, false
}
