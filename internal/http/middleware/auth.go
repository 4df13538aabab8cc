package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/authkeep/authkeep/internal/domain"
	"github.com/authkeep/authkeep/internal/repository"
)

const principalContextKey = "principal"

// Principals resolves callers into explicit principals: a client
// authenticated with its credentials, or the holder of a live bearer token.
type Principals struct {
	Clients repository.ClientRepository
	Tokens  repository.TokenRepository
}

// RequireClient authenticates a client for the token endpoint. Confidential
// clients must present their secret via HTTP Basic or form fields; public
// clients identify with client_id alone.
func (m *Principals) RequireClient(c *gin.Context) {
	client, ok := m.resolveClient(c)
	if !ok {
		c.Header("WWW-Authenticate", "Basic")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid_client", "error_description": "Client authentication failed.",
		})
		return
	}
	c.Set(principalContextKey, domain.Principal{Client: client})
	c.Next()
}

// RequirePrincipal authenticates introspection and revocation callers:
// either a bearer token holder or a confidential client.
func (m *Principals) RequirePrincipal(c *gin.Context) {
	if token, ok := m.resolveBearer(c); ok {
		client, err := m.Clients.GetClient(c.Request.Context(), token.ClientID)
		if err == nil {
			c.Set(principalContextKey, domain.Principal{Client: client, Token: &token})
			c.Next()
			return
		}
	}

	if client, ok := m.resolveClient(c); ok && client.Confidential() {
		c.Set(principalContextKey, domain.Principal{Client: client})
		c.Next()
		return
	}

	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "invalid_client", "error_description": "Authentication required.",
	})
}

// GetPrincipal extracts the resolved principal from gin.
func GetPrincipal(c *gin.Context) (domain.Principal, bool) {
	value, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := value.(domain.Principal)
	return principal, ok
}

func (m *Principals) resolveClient(c *gin.Context) (domain.Client, bool) {
	id, secret, ok := c.Request.BasicAuth()
	if !ok {
		id = c.PostForm("client_id")
		secret = c.PostForm("client_secret")
	}

	clientID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return domain.Client{}, false
	}
	client, err := m.Clients.GetClient(c.Request.Context(), clientID)
	if err != nil {
		return domain.Client{}, false
	}
	if !secretMatches(client, secret) {
		return domain.Client{}, false
	}
	return client, true
}

func (m *Principals) resolveBearer(c *gin.Context) (domain.OAuthToken, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return domain.OAuthToken{}, false
	}
	tokenID, err := uuid.Parse(strings.TrimSpace(parts[1]))
	if err != nil {
		return domain.OAuthToken{}, false
	}
	token, err := m.Tokens.GetToken(c.Request.Context(), tokenID)
	if err != nil || token.Type != domain.TokenTypeBearer || token.IsExpired() {
		return domain.OAuthToken{}, false
	}
	return token, true
}

func secretMatches(client domain.Client, presented string) bool {
	if !client.Confidential() {
		return presented == ""
	}
	return subtle.ConstantTimeCompare([]byte(client.Secret), []byte(presented)) == 1
}
