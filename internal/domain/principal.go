package domain

import "github.com/google/uuid"

// Principal is the authenticated caller of a protected endpoint: either a
// client authenticated with its credentials, or the holder of a bearer
// token. Principals are passed explicitly into every service call; there is
// no ambient security context.
type Principal struct {
	Client Client

	// Token is set when the caller authenticated with a bearer token.
	Token *OAuthToken
}

// IsClient reports whether the principal authenticated with client
// credentials rather than a bearer token.
func (p Principal) IsClient() bool {
	return p.Token == nil
}

// IdentityID returns the user identity bound to the principal, if any.
func (p Principal) IdentityID() *uuid.UUID {
	if p.Token == nil {
		return nil
	}
	return p.Token.IdentityID
}
