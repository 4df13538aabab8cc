package oauth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/authkeep/authkeep/internal/domain"
	"github.com/authkeep/authkeep/internal/repository"
)

// RevocationService implements RFC 7009 token revocation. A confidential
// client principal may revoke any token in its application; an
// identity-bound bearer principal may revoke any of that user's tokens.
// Every other case fails not_found, so existence is never disclosed to an
// unauthorized caller.
type RevocationService struct {
	tokens     repository.TokenRepository
	clients    repository.ClientRepository
	identities repository.IdentityRepository
	logger     *zap.Logger
}

func NewRevocationService(
	tokens repository.TokenRepository,
	clients repository.ClientRepository,
	identities repository.IdentityRepository,
	logger *zap.Logger,
) *RevocationService {
	return &RevocationService{tokens: tokens, clients: clients, identities: identities, logger: logger}
}

// Revoke deletes the token and cascades to any refresh token chained to it.
func (s *RevocationService) Revoke(ctx context.Context, principal domain.Principal, tokenParam string) error {
	ctx, span := startSpan(ctx, "RevocationService.Revoke")
	defer span.End()

	tokenID, err := uuid.Parse(strings.TrimSpace(tokenParam))
	if err != nil {
		return notFound("The token does not exist.")
	}
	token, err := s.tokens.GetToken(ctx, tokenID)
	if err != nil {
		return notFound("The token does not exist.")
	}

	if err := s.authorize(ctx, principal, token); err != nil {
		return err
	}

	if err := s.tokens.DeleteToken(ctx, token.ID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete token: %w", err)
	}

	s.log().Info("token revoked",
		zap.Stringer("token_id", token.ID),
		zap.Stringer("client_id", token.ClientID),
	)
	return nil
}

func (s *RevocationService) authorize(ctx context.Context, principal domain.Principal, token domain.OAuthToken) error {
	if principal.IsClient() && principal.Client.Confidential() {
		owner, err := s.clients.GetClient(ctx, token.ClientID)
		if err != nil {
			return notFound("The token does not exist.")
		}
		if owner.ApplicationID == principal.Client.ApplicationID {
			return nil
		}
		return notFound("The token does not exist.")
	}

	// An identity-bound bearer principal may revoke across the user's
	// tokens, not just its own: identities are compared by user, since a
	// user may hold identities on several authenticators.
	principalID := principal.IdentityID()
	if principalID == nil || token.IdentityID == nil {
		return notFound("The token does not exist.")
	}
	caller, err := s.identities.GetIdentityByID(ctx, *principalID)
	if err != nil {
		return notFound("The token does not exist.")
	}
	subject, err := s.identities.GetIdentityByID(ctx, *token.IdentityID)
	if err != nil {
		return notFound("The token does not exist.")
	}
	if caller.UserID == subject.UserID {
		return nil
	}
	return notFound("The token does not exist.")
}

func (s *RevocationService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
