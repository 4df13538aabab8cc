package oauth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// RFC 6749 error codes surfaced by the protocol core.
const (
	ErrorInvalidRequest          = "invalid_request"
	ErrorInvalidClient           = "invalid_client"
	ErrorInvalidGrant            = "invalid_grant"
	ErrorInvalidScope            = "invalid_scope"
	ErrorUnsupportedGrantType    = "unsupported_grant_type"
	ErrorUnsupportedResponseType = "unsupported_response_type"
	ErrorAccessDenied            = "access_denied"
	ErrorNotFound                = "not_found"
	ErrorServerError             = "server_error"
)

// Error is a protocol failure with an RFC 6749 error code. When Redirect is
// set the error was raised after the flow's redirect URI had been
// validated, and it must be delivered to that URI as error/error_description
// query parameters instead of a bare HTTP error body.
type Error struct {
	Code        string
	Description string
	Status      int
	Redirect    *url.URL
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newError(code, description string, status int) *Error {
	return &Error{Code: code, Description: description, Status: status}
}

func invalidRequest(description string) *Error {
	return newError(ErrorInvalidRequest, description, http.StatusBadRequest)
}

func invalidGrant(description string) *Error {
	return newError(ErrorInvalidGrant, description, http.StatusBadRequest)
}

func invalidScope(description string) *Error {
	return newError(ErrorInvalidScope, description, http.StatusBadRequest)
}

func accessDenied(description string) *Error {
	return newError(ErrorAccessDenied, description, http.StatusUnauthorized)
}

func notFound(description string) *Error {
	return newError(ErrorNotFound, description, http.StatusNotFound)
}

// AsError coerces any error into a protocol error. Unknown failures become
// opaque server errors so internal details never reach a caller.
func AsError(err error) *Error {
	var oauthErr *Error
	if errors.As(err, &oauthErr) {
		return oauthErr
	}
	return newError(ErrorServerError, "Internal server error.", http.StatusInternalServerError)
}

// redirected rebinds an error's delivery target to the validated redirect
// URI. Once a redirect has been validated, every later failure in that flow
// must be deliverable to the client application.
func redirected(err error, target *url.URL) error {
	if err == nil || target == nil {
		return err
	}
	wrapped := AsError(err)
	return &Error{
		Code:        wrapped.Code,
		Description: wrapped.Description,
		Status:      wrapped.Status,
		Redirect:    target,
	}
}
