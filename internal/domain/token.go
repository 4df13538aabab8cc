package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenType distinguishes the three credential shapes issued by the server.
type TokenType string

const (
	TokenTypeAuthorization TokenType = "Authorization"
	TokenTypeBearer        TokenType = "Bearer"
	TokenTypeRefresh       TokenType = "Refresh"
)

// OAuthToken is the central credential entity. The id doubles as the opaque
// credential value presented by callers.
type OAuthToken struct {
	ID       uuid.UUID
	Type     TokenType
	ClientID uuid.UUID

	// IdentityID is absent for client-credentials tokens.
	IdentityID *uuid.UUID

	// ParentID is set only on Refresh tokens and points at the Bearer
	// token they refresh. The chain is single-level: a refresh token's
	// parent is never itself a refresh token.
	ParentID *uuid.UUID

	// SessionID groups refresh tokens under one browser session so a
	// renewed login can rotate credentials without re-authentication.
	SessionID *uuid.UUID

	// RedirectURI is set only on Authorization-type tokens, echoing the
	// redirect validated at authorize time.
	RedirectURI string

	ExpiresIn int64
	Issuer    string
	Scopes    Scopes
	CreatedAt time.Time
}

// ExpiresAt returns the instant the token stops being valid.
func (t OAuthToken) ExpiresAt() time.Time {
	return t.CreatedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// IsExpired reports whether the token has passed its computed expiry.
// Expiration is computed, never stored; every read path re-checks it.
func (t OAuthToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt())
}

// FlowStatus tracks the authorize handshake. A record starts Requested and
// is promoted to AwaitingCallback once the user agent has been handed to
// the authenticator; completion or failure deletes the record outright.
type FlowStatus string

const (
	FlowRequested        FlowStatus = "Requested"
	FlowAwaitingCallback FlowStatus = "AwaitingCallback"
)

// AuthenticatorState is the ephemeral correlation record bridging the
// authorize and callback legs of the handshake. It is single-use: the
// record is invalidated as soon as its flow completes or fails.
type AuthenticatorState struct {
	ID                uuid.UUID  `json:"id"`
	ClientID          uuid.UUID  `json:"client_id"`
	AuthenticatorID   uuid.UUID  `json:"authenticator_id"`
	AuthenticatorType string     `json:"authenticator_type"`
	RedirectURI       string     `json:"redirect_uri"`
	ClientState       string     `json:"client_state"`
	Scopes            []string   `json:"scopes"`
	Status            FlowStatus `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
}
