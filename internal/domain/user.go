package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserIdentity is a user's identity as asserted by one authenticator.
// Password identities carry a salted hash; it is never serialized outward.
type UserIdentity struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	AuthenticatorID uuid.UUID
	Type            string
	RemoteID        string
	Claims          map[string]string
	PasswordHash    string `json:"-"`
	CreatedAt       time.Time
}
