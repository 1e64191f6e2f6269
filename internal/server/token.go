package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avoauthd/internal/oauth"
	"github.com/vyrodovalexey/avoauthd/internal/observability"
)

// handleToken authenticates the calling client and issues an access token.
// Client authentication is the terminal gate: any resolution failure aborts
// the request with the reporter's status and body.
func (s *Server) handleToken(c *gin.Context) {
	attempt := buildAttempt(c)

	client, err := s.resolver.Resolve(c.Request.Context(), attempt)
	if err != nil {
		status, body := s.reporter.Report(err)
		c.AbortWithStatusJSON(status, body)
		return
	}

	issued, err := s.issuer.Issue(c.Request.Context(), client)
	if err != nil {
		s.logger.Error("token issuance failed",
			observability.String("client_id", client.ID),
			observability.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, oauth.NewError(oauth.ErrorCodeServerError))
		return
	}

	// Token responses must never be cached.
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, issued)
}
