package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/authkeep/authkeep/internal/config"
	"github.com/authkeep/authkeep/internal/http/middleware"
	"github.com/authkeep/authkeep/internal/oauth"
)

// OAuthHandler exposes the protocol endpoints.
type OAuthHandler struct {
	Tokens        *oauth.TokenService
	Flow          *oauth.FlowService
	Introspection *oauth.IntrospectionService
	Revocation    *oauth.RevocationService
	Discovery     *oauth.DiscoveryService
	Config        config.Config
}

// NewOAuthHandler creates the handler set.
func NewOAuthHandler(
	tokens *oauth.TokenService,
	flow *oauth.FlowService,
	introspection *oauth.IntrospectionService,
	revocation *oauth.RevocationService,
	discovery *oauth.DiscoveryService,
	cfg config.Config,
) *OAuthHandler {
	return &OAuthHandler{
		Tokens:        tokens,
		Flow:          flow,
		Introspection: introspection,
		Revocation:    revocation,
		Discovery:     discovery,
		Config:        cfg,
	}
}

// Token handles grant exchanges at the token endpoint.
func (h *OAuthHandler) Token(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client", "error_description": "Client authentication failed."})
		return
	}

	var req oauth.TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid token request."})
		return
	}

	resp, err := h.Tokens.Grant(c.Request.Context(), principal.Client, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Authorize begins the two-phase authorization handshake.
func (h *OAuthHandler) Authorize(c *gin.Context) {
	var req oauth.AuthorizeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid authorize request."})
		return
	}

	target, err := h.Flow.Authorize(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target.String())
}

// Callback resumes the handshake from its correlation record.
func (h *OAuthHandler) Callback(c *gin.Context) {
	target, err := h.Flow.Callback(c.Request.Context(), c.Query("state"), c.Request.URL.Query())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target.String())
}

// Introspect answers RFC 7662 introspection requests.
func (h *OAuthHandler) Introspect(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client", "error_description": "Authentication required."})
		return
	}
	c.JSON(http.StatusOK, h.Introspection.Introspect(c.Request.Context(), principal, c.PostForm("token")))
}

// Revoke processes RFC 7009 revocation. Success responds reset-content
// with an empty body.
func (h *OAuthHandler) Revoke(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client", "error_description": "Authentication required."})
		return
	}
	if err := h.Revocation.Revoke(c.Request.Context(), principal, c.PostForm("token")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusResetContent)
}

// Metadata serves the authorization-server discovery document.
func (h *OAuthHandler) Metadata(c *gin.Context) {
	c.JSON(http.StatusOK, h.Discovery.Metadata(h.Config.Issuer))
}

// Health reports liveness.
func (h *OAuthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError renders a protocol error. Errors carrying a validated
// redirect are delivered to it as query parameters so the client
// application can surface them; everything else is a JSON error body.
func (h *OAuthHandler) respondError(c *gin.Context, err error) {
	oauthErr := oauth.AsError(err)
	if oauthErr.Code == oauth.ErrorServerError {
		zap.L().Error("request failed", zap.Error(err))
	} else {
		zap.L().Warn("request rejected", zap.String("error", oauthErr.Code), zap.Error(err))
	}

	if oauthErr.Redirect != nil {
		target := *oauthErr.Redirect
		query := target.Query()
		query.Set("error", oauthErr.Code)
		query.Set("error_description", oauthErr.Description)
		target.RawQuery = query.Encode()
		c.Redirect(http.StatusFound, target.String())
		return
	}
	c.JSON(oauthErr.Status, gin.H{"error": oauthErr.Code, "error_description": oauthErr.Description})
}
