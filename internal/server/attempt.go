package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avoauthd/internal/oauth"
)

// Request-scoped keys set by upstream middleware, read when the attempt is
// assembled.
const (
	// ContextKeyPrincipal holds the name of a principal authenticated by a
	// lower layer (for example container-managed auth). An empty string is
	// a present-but-unnamed principal.
	ContextKeyPrincipal = "auth.principal"

	// ContextKeyMappedClientID holds a client identifier mapped from the
	// principal by an upstream filter.
	ContextKeyMappedClientID = "auth.client_id"
)

// SetPrincipal marks the request as pre-authenticated by a lower layer.
func SetPrincipal(c *gin.Context, name string) {
	c.Set(ContextKeyPrincipal, name)
}

// SetMappedClientID stashes a client identifier resolved by an upstream
// filter on the request.
func SetMappedClientID(c *gin.Context, clientID string) {
	c.Set(ContextKeyMappedClientID, clientID)
}

// buildAttempt assembles the authentication inputs present on the request.
// Only fields the request actually carries are populated.
func buildAttempt(c *gin.Context) *oauth.Attempt {
	r := c.Request
	attempt := &oauth.Attempt{
		Authorization: r.Header.Get("Authorization"),
	}

	if err := r.ParseForm(); err == nil {
		if values, ok := r.PostForm["client_id"]; ok && len(values) > 0 {
			attempt.FormClientID = &values[0]
		}
		if values, ok := r.PostForm["client_secret"]; ok && len(values) > 0 {
			attempt.FormClientSecret = &values[0]
		}
	}

	if v, ok := c.Get(ContextKeyPrincipal); ok {
		if name, ok := v.(string); ok {
			attempt.Principal = &name
		}
	}
	if v, ok := c.Get(ContextKeyMappedClientID); ok {
		if clientID, ok := v.(string); ok {
			attempt.MappedClientID = clientID
		}
	}

	if r.TLS != nil {
		attempt.TLS = true
		attempt.PeerCertificates = r.TLS.PeerCertificates
		// An Authorization header on a TLS connection means an
		// authentication scheme is layered on top of the transport.
		if scheme, _, found := strings.Cut(attempt.Authorization, " "); found {
			if strings.EqualFold(scheme, oauth.SchemeBasic) {
				attempt.AuthScheme = oauth.SchemeBasic
			}
		}
	}

	return attempt
}
