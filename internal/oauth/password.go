package oauth

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/authkeep/authkeep/internal/domain"
	"github.com/authkeep/authkeep/internal/repository"
)

var _ Delegate = (*PasswordDelegate)(nil)

// PasswordDelegate is the built-in username/password authenticator. Start
// sends the user agent to the hosted login form; Finish verifies the
// posted credentials against the stored identity.
type PasswordDelegate struct {
	identities repository.IdentityRepository
	loginURL   string
}

func NewPasswordDelegate(identities repository.IdentityRepository, loginURL string) *PasswordDelegate {
	return &PasswordDelegate{identities: identities, loginURL: loginURL}
}

func (d *PasswordDelegate) Start(ctx context.Context, state domain.AuthenticatorState) (*url.URL, error) {
	target, err := url.Parse(d.loginURL)
	if err != nil {
		return nil, invalidRequest("The login endpoint is not configured.")
	}
	query := target.Query()
	query.Set("state", state.ID.String())
	target.RawQuery = query.Encode()
	return target, nil
}

func (d *PasswordDelegate) Finish(ctx context.Context, state domain.AuthenticatorState, params url.Values) (domain.UserIdentity, error) {
	username := strings.ToLower(strings.TrimSpace(params.Get("username")))
	password := params.Get("password")
	if username == "" || password == "" {
		return domain.UserIdentity{}, accessDenied("Invalid credentials.")
	}

	identity, err := d.identities.GetIdentity(ctx, state.AuthenticatorID, username)
	if err != nil {
		return domain.UserIdentity{}, accessDenied("Invalid credentials.")
	}
	if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)) != nil {
		return domain.UserIdentity{}, accessDenied("Invalid credentials.")
	}
	return identity, nil
}
