package oauth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/authkeep/authkeep/internal/domain"
)

// RequireValidRedirect resolves the redirect URI for a flow. An absent
// request resolves to the single registered redirect, and only that; a
// present request must exact-match a registered redirect byte for byte, so
// a trailing slash or scheme difference is rejected.
func RequireValidRedirect(requested string, registered []string) (*url.URL, error) {
	requested = strings.TrimSpace(requested)

	if requested == "" {
		if len(registered) != 1 {
			return nil, invalidRequest("A redirect_uri is required.")
		}
		requested = registered[0]
	} else {
		matched := false
		for _, candidate := range registered {
			if candidate == requested {
				matched = true
				break
			}
		}
		if !matched {
			return nil, invalidRequest("The redirect_uri is not registered for this client.")
		}
	}

	target, err := url.Parse(requested)
	if err != nil || !target.IsAbs() || target.Host == "" {
		return nil, invalidRequest("The redirect_uri must be an absolute URI.")
	}
	return target, nil
}

// ValidateResponseType fails unless the client's type permits the requested
// response type.
func ValidateResponseType(client domain.Client, responseType string) error {
	if !client.Type.AllowsResponseType(strings.TrimSpace(responseType)) {
		return newError(ErrorUnsupportedResponseType,
			"The response_type is not supported by this client.", http.StatusBadRequest)
	}
	return nil
}

// ValidateAuthenticator resolves the authenticator for a flow. An absent
// request resolves only when exactly one authenticator is configured; a
// present request must exact-match a configured authenticator type.
func ValidateAuthenticator(requested string, available []domain.Authenticator) (domain.Authenticator, error) {
	requested = strings.TrimSpace(requested)

	if requested == "" {
		if len(available) != 1 {
			return domain.Authenticator{}, invalidRequest("An authenticator must be selected.")
		}
		return available[0], nil
	}

	for _, candidate := range available {
		if candidate.Type == requested {
			return candidate, nil
		}
	}
	return domain.Authenticator{}, invalidRequest("The requested authenticator is not configured.")
}

// ValidateScope resolves a space-delimited scope request against the
// registered scope set. An empty request yields an empty set, never "all
// scopes"; any unknown scope fails the whole request. Duplicates are
// idempotent.
func ValidateScope(requested string, registered domain.Scopes) (domain.Scopes, error) {
	granted := domain.Scopes{}
	for _, name := range strings.Fields(requested) {
		scope, ok := registered[name]
		if !ok {
			return nil, invalidScope("The requested scope is not available: " + name)
		}
		granted[name] = scope
	}
	return granted, nil
}
