package oauth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/authkeep/authkeep/internal/config"
	"github.com/authkeep/authkeep/internal/domain"
	"github.com/authkeep/authkeep/internal/repository"
)

// Delegate drives the external authentication leg of the authorize
// handshake for one authenticator type. Start returns the URL the user
// agent is sent to; Finish resolves the authenticated identity from the
// callback parameters.
type Delegate interface {
	Start(ctx context.Context, state domain.AuthenticatorState) (*url.URL, error)
	Finish(ctx context.Context, state domain.AuthenticatorState, params url.Values) (domain.UserIdentity, error)
}

// AuthorizeRequest carries the query parameters of an authorize request.
type AuthorizeRequest struct {
	ClientID      string `form:"client_id" binding:"required"`
	ResponseType  string `form:"response_type"`
	RedirectURI   string `form:"redirect_uri"`
	Scope         string `form:"scope"`
	State         string `form:"state"`
	Authenticator string `form:"authenticator"`
}

// FlowService orchestrates the two-phase authorize/callback handshake. The
// redirect URI is validated before anything else so that every later
// failure can be delivered back to the client application, and per
// client type a dedicated authorizer finishes the flow.
type FlowService struct {
	clients   repository.ClientRepository
	tokens    repository.TokenRepository
	states    repository.StateStore
	delegates map[string]Delegate
	cfg       config.Config
	logger    *zap.Logger
}

// NewFlowService wires the authorization flow controller.
func NewFlowService(
	clients repository.ClientRepository,
	tokens repository.TokenRepository,
	states repository.StateStore,
	delegates map[string]Delegate,
	cfg config.Config,
	logger *zap.Logger,
) *FlowService {
	return &FlowService{
		clients:   clients,
		tokens:    tokens,
		states:    states,
		delegates: delegates,
		cfg:       cfg,
		logger:    logger,
	}
}

// clientAuthorizer finishes an authorize flow for one client type: a small
// closed set of variants dispatched by type, not inheritance.
type clientAuthorizer interface {
	authorize(ctx context.Context, client domain.Client, in authorizeInput) (*url.URL, error)
	callback(ctx context.Context, client domain.Client, state domain.AuthenticatorState, params url.Values) (*url.URL, error)
}

type authorizeInput struct {
	redirect      *url.URL
	authenticator domain.Authenticator
	scopes        domain.Scopes
	clientState   string
}

func (s *FlowService) authorizerFor(t domain.ClientType) (clientAuthorizer, bool) {
	switch t {
	case domain.ClientTypeImplicit:
		return &implicitAuthorizer{svc: s}, true
	case domain.ClientTypeAuthorizationGrant:
		return &codeAuthorizer{svc: s}, true
	default:
		return nil, false
	}
}

// Authorize begins the handshake. Errors raised before the redirect URI has
// been validated surface directly; everything after is rebound to the
// validated redirect.
func (s *FlowService) Authorize(ctx context.Context, req AuthorizeRequest) (*url.URL, error) {
	ctx, span := startSpan(ctx, "FlowService.Authorize")
	defer span.End()

	clientID, err := uuid.Parse(strings.TrimSpace(req.ClientID))
	if err != nil {
		return nil, invalidRequest("The client_id is invalid.")
	}
	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, invalidRequest("The client_id is invalid.")
	}

	redirect, err := RequireValidRedirect(req.RedirectURI, client.Redirects)
	if err != nil {
		return nil, err
	}

	if err := ValidateResponseType(client, req.ResponseType); err != nil {
		return nil, redirected(err, redirect)
	}
	authenticator, err := ValidateAuthenticator(req.Authenticator, client.Authenticators)
	if err != nil {
		return nil, redirected(err, redirect)
	}
	registered, err := s.clients.GetApplicationScopes(ctx, client.ApplicationID)
	if err != nil {
		span.RecordError(err)
		return nil, redirected(fmt.Errorf("load application scopes: %w", err), redirect)
	}
	scopes, err := ValidateScope(req.Scope, registered)
	if err != nil {
		return nil, redirected(err, redirect)
	}

	authorizer, ok := s.authorizerFor(client.Type)
	if !ok {
		return nil, redirected(invalidRequest("The client may not begin an authorization flow."), redirect)
	}

	target, err := authorizer.authorize(ctx, client, authorizeInput{
		redirect:      redirect,
		authenticator: authenticator,
		scopes:        scopes,
		clientState:   req.State,
	})
	if err != nil {
		return nil, redirected(err, redirect)
	}
	return target, nil
}

// Callback resumes a handshake from its correlation record. The record is
// single-use: it is invalidated as soon as the flow completes or fails, so
// a replayed correlation id resolves to nothing.
func (s *FlowService) Callback(ctx context.Context, stateParam string, params url.Values) (*url.URL, error) {
	ctx, span := startSpan(ctx, "FlowService.Callback")
	defer span.End()

	stateID, err := uuid.Parse(strings.TrimSpace(stateParam))
	if err != nil {
		return nil, invalidRequest("The state parameter is invalid.")
	}
	state, err := s.states.GetState(ctx, stateID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load authenticator state: %w", err)
	}
	if state == nil || state.Status != domain.FlowAwaitingCallback {
		return nil, invalidRequest("The state parameter is invalid.")
	}
	defer func() {
		if err := s.states.DeleteState(ctx, stateID); err != nil {
			s.log().Warn("failed to invalidate authenticator state", zap.Error(err))
		}
	}()

	redirect, err := url.Parse(state.RedirectURI)
	if err != nil {
		return nil, invalidRequest("The state parameter is invalid.")
	}

	client, err := s.clients.GetClient(ctx, state.ClientID)
	if err != nil {
		span.RecordError(err)
		return nil, redirected(fmt.Errorf("load client: %w", err), redirect)
	}
	authorizer, ok := s.authorizerFor(client.Type)
	if !ok {
		return nil, redirected(invalidRequest("The client may not resume an authorization flow."), redirect)
	}

	target, err := authorizer.callback(ctx, client, *state, params)
	if err != nil {
		return nil, redirected(err, redirect)
	}
	return target, nil
}

func (s *FlowService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

// implicitAuthorizer issues a bearer token directly and delivers it in the
// redirect fragment.
type implicitAuthorizer struct {
	svc *FlowService
}

func (a *implicitAuthorizer) authorize(ctx context.Context, client domain.Client, in authorizeInput) (*url.URL, error) {
	bearer := newBearerToken(client, nil, in.scopes, a.svc.cfg.Issuer, a.svc.cfg.AccessTokenTTL)
	if err := a.svc.tokens.CreateTokens(ctx, bearer); err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	fragment := url.Values{}
	fragment.Set("access_token", bearer.ID.String())
	fragment.Set("token_type", "Bearer")
	fragment.Set("expires_in", fmt.Sprintf("%d", bearer.ExpiresIn))
	if scope := bearer.Scopes.String(); scope != "" {
		fragment.Set("scope", scope)
	}
	if in.clientState != "" {
		fragment.Set("state", in.clientState)
	}

	target := *in.redirect
	target.Fragment = fragment.Encode()
	return &target, nil
}

func (a *implicitAuthorizer) callback(ctx context.Context, client domain.Client, state domain.AuthenticatorState, params url.Values) (*url.URL, error) {
	return nil, invalidRequest("The client does not use the callback leg.")
}

// codeAuthorizer runs the interactive flow: it parks the request in an
// authenticator state record, hands the user agent to the external
// authenticator, and on callback issues a single-use authorization code.
type codeAuthorizer struct {
	svc *FlowService
}

func (a *codeAuthorizer) authorize(ctx context.Context, client domain.Client, in authorizeInput) (*url.URL, error) {
	delegate, ok := a.svc.delegates[in.authenticator.Type]
	if !ok {
		return nil, invalidRequest("The requested authenticator is not available.")
	}

	state := domain.AuthenticatorState{
		ID:                uuid.New(),
		ClientID:          client.ID,
		AuthenticatorID:   in.authenticator.ID,
		AuthenticatorType: in.authenticator.Type,
		RedirectURI:       in.redirect.String(),
		ClientState:       in.clientState,
		Scopes:            in.scopes.Names(),
		Status:            domain.FlowRequested,
		CreatedAt:         time.Now().UTC(),
	}
	if err := a.svc.states.SaveState(ctx, state, a.svc.cfg.StateTTL); err != nil {
		return nil, fmt.Errorf("persist authenticator state: %w", err)
	}

	target, err := delegate.Start(ctx, state)
	if err != nil {
		if delErr := a.svc.states.DeleteState(ctx, state.ID); delErr != nil {
			a.svc.log().Warn("failed to discard authenticator state", zap.Error(delErr))
		}
		return nil, err
	}

	// Only a flow whose hand-off succeeded may be resumed by a callback.
	state.Status = domain.FlowAwaitingCallback
	if err := a.svc.states.SaveState(ctx, state, a.svc.cfg.StateTTL); err != nil {
		return nil, fmt.Errorf("persist authenticator state: %w", err)
	}
	return target, nil
}

func (a *codeAuthorizer) callback(ctx context.Context, client domain.Client, state domain.AuthenticatorState, params url.Values) (*url.URL, error) {
	delegate, ok := a.svc.delegates[state.AuthenticatorType]
	if !ok {
		return nil, invalidRequest("The requested authenticator is not available.")
	}

	identity, err := delegate.Finish(ctx, state, params)
	if err != nil {
		return nil, err
	}

	identityID := identity.ID
	code := newAuthorizationCode(client, &identityID,
		domain.ScopesFromNames(state.Scopes...), state.RedirectURI, a.svc.cfg.Issuer, a.svc.cfg.AuthCodeTTL)
	if err := a.svc.tokens.CreateTokens(ctx, code); err != nil {
		return nil, fmt.Errorf("issue authorization code: %w", err)
	}

	redirect, err := url.Parse(state.RedirectURI)
	if err != nil {
		return nil, invalidRequest("The stored redirect is invalid.")
	}
	query := redirect.Query()
	query.Set("code", code.ID.String())
	if state.ClientState != "" {
		query.Set("state", state.ClientState)
	}
	redirect.RawQuery = query.Encode()

	a.svc.log().Info("authorization code issued",
		zap.Stringer("client_id", client.ID),
		zap.Stringer("identity_id", identity.ID),
	)
	return redirect, nil
}
