package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/authkeep/authkeep/internal/config"
	"github.com/authkeep/authkeep/internal/http/handler"
	httpmiddleware "github.com/authkeep/authkeep/internal/http/middleware"
	"github.com/authkeep/authkeep/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, oauthHandler *handler.OAuthHandler, principals *httpmiddleware.Principals) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	r.Use(middleware.CORS(cfg, principals.Clients))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/authorize", oauthHandler.Authorize)
	r.GET("/authorize/callback", oauthHandler.Callback)
	r.POST("/token", principals.RequireClient, oauthHandler.Token)
	r.POST("/introspect", principals.RequirePrincipal, oauthHandler.Introspect)
	r.POST("/oauth2/revoke", principals.RequirePrincipal, oauthHandler.Revoke)

	r.GET("/.well-known/oauth-authorization-server", oauthHandler.Metadata)
	r.GET("/health", oauthHandler.Health)

	return r
}
