package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/authkeep/authkeep/internal/config"
	"github.com/authkeep/authkeep/internal/repository"
)

// CORS applies the configured cross-origin policy. Beyond the static
// allow-list, an origin registered as a referrer of the requesting client
// is allowed, so browser-based clients reach the protocol endpoints from
// their own registered origins.
func CORS(cfg config.Config, clients repository.ClientRepository) gin.HandlerFunc {
	joinedMethods := strings.Join(cfg.CORSAllowedMethods, ", ")
	joinedHeaders := strings.Join(cfg.CORSAllowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		allowed := originAllowed(origin, cfg.CORSAllowedOrigins)
		if !allowed {
			allowed = clientReferrerAllowed(c, clients, origin)
		}
		if !allowed {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
			return
		}

		header := c.Writer.Header()
		header.Set("Vary", "Origin")
		header.Set("Access-Control-Allow-Methods", joinedMethods)
		header.Set("Access-Control-Allow-Headers", joinedHeaders)
		if cfg.CORSAllowCredentials {
			header.Set("Access-Control-Allow-Credentials", "true")
		}

		if containsWildcard(cfg.CORSAllowedOrigins) && !cfg.CORSAllowCredentials {
			header.Set("Access-Control-Allow-Origin", "*")
		} else {
			header.Set("Access-Control-Allow-Origin", origin)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, candidate := range allowed {
		if candidate == "*" || strings.EqualFold(candidate, origin) {
			return true
		}
	}
	return false
}

// clientReferrerAllowed resolves the client named by the request and checks
// the origin against its registered referrers. The client id arrives in the
// query on authorize requests and in the form on token requests; preflight
// requests carry no form body, so only the query is consulted there.
func clientReferrerAllowed(c *gin.Context, clients repository.ClientRepository, origin string) bool {
	if clients == nil {
		return false
	}
	id := c.Query("client_id")
	if id == "" && c.Request.Method != http.MethodOptions {
		id = c.PostForm("client_id")
	}
	clientID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return false
	}
	client, err := clients.GetClient(c.Request.Context(), clientID)
	if err != nil {
		return false
	}
	for _, referrer := range client.Referrers {
		if strings.EqualFold(strings.TrimSuffix(referrer, "/"), strings.TrimSuffix(origin, "/")) {
			return true
		}
	}
	return false
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
