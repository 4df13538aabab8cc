package oauth

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/authkeep/authkeep/internal/config"
	"github.com/authkeep/authkeep/internal/domain"
	"github.com/authkeep/authkeep/internal/repository"
)

var tracer = otel.Tracer("authkeep/oauth")

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// TokenRequest carries the form fields of a token endpoint request.
type TokenRequest struct {
	GrantType    string `form:"grant_type" binding:"required"`
	Code         string `form:"code"`
	RedirectURI  string `form:"redirect_uri"`
	Scope        string `form:"scope"`
	State        string `form:"state"`
	Username     string `form:"username"`
	Password     string `form:"password"`
	RefreshToken string `form:"refresh_token"`
}

// TokenService turns authenticated token requests into issued credentials.
// Grants dispatch on the grant_type form field; each handler validates the
// client type's compatibility before touching the store.
type TokenService struct {
	clients    repository.ClientRepository
	identities repository.IdentityRepository
	tokens     repository.TokenRepository
	cfg        config.Config
	logger     *zap.Logger
}

// NewTokenService wires the grant handlers.
func NewTokenService(
	clients repository.ClientRepository,
	identities repository.IdentityRepository,
	tokens repository.TokenRepository,
	cfg config.Config,
	logger *zap.Logger,
) *TokenService {
	return &TokenService{
		clients:    clients,
		identities: identities,
		tokens:     tokens,
		cfg:        cfg,
		logger:     logger,
	}
}

// Grant dispatches a token request to the handler for its grant type.
func (s *TokenService) Grant(ctx context.Context, client domain.Client, req TokenRequest) (*TokenResponse, error) {
	ctx, span := startSpan(ctx, "TokenService.Grant")
	defer span.End()

	// Grant type values are case-sensitive per RFC 6749 appendix A.10.
	switch strings.TrimSpace(req.GrantType) {
	case domain.GrantAuthorizationCode:
		return s.authorizationCodeGrant(ctx, client, req)
	case domain.GrantClientCredentials:
		return s.clientCredentialsGrant(ctx, client, req)
	case domain.GrantPassword:
		return s.ownerCredentialsGrant(ctx, client, req)
	case domain.GrantRefreshToken:
		return s.refreshTokenGrant(ctx, client, req)
	default:
		return nil, newError(ErrorUnsupportedGrantType, "The grant_type is not supported.", http.StatusBadRequest)
	}
}

func (s *TokenService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
