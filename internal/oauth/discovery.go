package oauth

import (
	"fmt"

	"github.com/authkeep/authkeep/internal/domain"
)

// DiscoveryService builds the RFC 8414 authorization server metadata.
type DiscoveryService struct{}

// ServerMetadata matches the authorization-server metadata document.
type ServerMetadata struct {
	Issuer                   string   `json:"issuer"`
	AuthorizationEndpoint    string   `json:"authorization_endpoint"`
	TokenEndpoint            string   `json:"token_endpoint"`
	IntrospectionEndpoint    string   `json:"introspection_endpoint"`
	RevocationEndpoint       string   `json:"revocation_endpoint"`
	ResponseTypesSupported   []string `json:"response_types_supported"`
	GrantTypesSupported      []string `json:"grant_types_supported"`
	TokenEndpointAuthMethods []string `json:"token_endpoint_auth_methods_supported"`
}

// Metadata builds the discovery document for the configured issuer.
func (s *DiscoveryService) Metadata(issuer string) ServerMetadata {
	return ServerMetadata{
		Issuer:                issuer,
		AuthorizationEndpoint: fmt.Sprintf("%s/authorize", issuer),
		TokenEndpoint:         fmt.Sprintf("%s/token", issuer),
		IntrospectionEndpoint: fmt.Sprintf("%s/introspect", issuer),
		RevocationEndpoint:    fmt.Sprintf("%s/oauth2/revoke", issuer),
		ResponseTypesSupported: []string{
			domain.ResponseTypeCode,
			domain.ResponseTypeToken,
		},
		GrantTypesSupported: []string{
			domain.GrantAuthorizationCode,
			domain.GrantClientCredentials,
			domain.GrantPassword,
			domain.GrantRefreshToken,
		},
		TokenEndpointAuthMethods: []string{"client_secret_basic", "client_secret_post"},
	}
}
