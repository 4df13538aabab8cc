package oauth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/authkeep/authkeep/internal/domain"
	"github.com/authkeep/authkeep/internal/repository"
)

// Introspection is the RFC 7662 response body. An inactive token carries
// the active flag and nothing else, so callers learn nothing about why a
// token is inactive or whether it ever existed.
type Introspection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Audience  string `json:"aud,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	TokenID   string `json:"jti,omitempty"`
}

var inactive = &Introspection{Active: false}

// IntrospectionService answers "is this token active" for authenticated
// principals. A bearer-token principal may only introspect itself; a
// client principal may introspect any token in the same application.
type IntrospectionService struct {
	tokens     repository.TokenRepository
	clients    repository.ClientRepository
	identities repository.IdentityRepository
	logger     *zap.Logger
}

func NewIntrospectionService(
	tokens repository.TokenRepository,
	clients repository.ClientRepository,
	identities repository.IdentityRepository,
	logger *zap.Logger,
) *IntrospectionService {
	return &IntrospectionService{tokens: tokens, clients: clients, identities: identities, logger: logger}
}

// Introspect never fails outward: any unresolvable, expired, or
// out-of-authority token is simply inactive.
func (s *IntrospectionService) Introspect(ctx context.Context, principal domain.Principal, tokenParam string) *Introspection {
	ctx, span := startSpan(ctx, "IntrospectionService.Introspect")
	defer span.End()

	tokenID, err := uuid.Parse(strings.TrimSpace(tokenParam))
	if err != nil {
		return inactive
	}
	token, err := s.tokens.GetToken(ctx, tokenID)
	if err != nil {
		return inactive
	}
	if token.IsExpired() {
		return inactive
	}

	owner, err := s.clients.GetClient(ctx, token.ClientID)
	if err != nil {
		span.RecordError(err)
		return inactive
	}

	if principal.IsClient() {
		if owner.ApplicationID != principal.Client.ApplicationID {
			return inactive
		}
	} else if principal.Token.ID != token.ID {
		return inactive
	}

	subject := owner.ID.String()
	if token.IdentityID != nil {
		identity, err := s.identities.GetIdentityByID(ctx, *token.IdentityID)
		if err != nil {
			span.RecordError(err)
			return inactive
		}
		subject = identity.UserID.String()
	}

	return &Introspection{
		Active:    true,
		Scope:     token.Scopes.String(),
		ClientID:  token.ClientID.String(),
		Subject:   subject,
		Audience:  owner.ApplicationID.String(),
		Issuer:    token.Issuer,
		TokenType: string(token.Type),
		ExpiresAt: token.ExpiresAt().Unix(),
		IssuedAt:  token.CreatedAt.Unix(),
		NotBefore: token.CreatedAt.Unix(),
		TokenID:   token.ID.String(),
	}
}
