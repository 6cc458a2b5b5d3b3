package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowmetric/ingest-gateway/internal/models"
)

// Gin context keys for the authenticated identity.
const (
	authCtxKey  = "auth_ctx"
	authKindKey = "auth_kind"
)

// Credential kinds as seen by downstream handlers.
const (
	KindAPIKey      = "api_key"
	KindWidgetToken = "widget_token"
)

// Middleware authenticates the Authorization header against either the
// credential resolver (long-lived API keys) or the token codec (short-lived
// widget tokens) and attaches an AuthContext to the request.
func Middleware(resolver *Resolver, codec *TokenCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "missing Authorization header", models.CodeUnauthorized)
			return
		}

		switch cred := ParseAuthorization(header).(type) {
		case APIKeyCredential:
			resolved, err := resolver.Resolve(c.Request.Context(), cred.Raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
					Error: "credential lookup failed",
					Code:  models.CodeInternalError,
				})
				return
			}
			if resolved == nil {
				abortUnauthorized(c, "invalid or revoked API key", models.CodeUnauthorized)
				return
			}
			c.Set(authCtxKey, models.AuthContext{
				WorkspaceID: resolved.WorkspaceID,
				ProjectID:   resolved.ProjectID,
				Source:      models.SourceServer,
				RateKey:     resolved.KeyHash,
			})
			c.Set(authKindKey, KindAPIKey)

		case BearerToken:
			claims, ok := codec.Verify(cred.Raw)
			if !ok {
				abortUnauthorized(c, "invalid or expired token", models.CodeUnauthorized)
				return
			}
			c.Set(authCtxKey, models.AuthContext{
				WorkspaceID: claims.WorkspaceID,
				ProjectID:   claims.ProjectID,
				Source:      models.SourceWidget,
				TraceID:     claims.TraceID,
				SessionID:   claims.SessionID,
				RateKey:     tokenDigest(cred.Raw),
			})
			c.Set(authKindKey, KindWidgetToken)

		default:
			abortUnauthorized(c, "unrecognized credential format", models.CodeInvalidAuthorization)
			return
		}

		c.Next()
	}
}

// tokenDigest gives each widget token its own rate bucket without holding
// the token itself in limiter state.
func tokenDigest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func abortUnauthorized(c *gin.Context, msg, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: msg, Code: code})
}

// FromContext returns the authenticated identity for the request.
func FromContext(c *gin.Context) (models.AuthContext, bool) {
	v, ok := c.Get(authCtxKey)
	if !ok {
		return models.AuthContext{}, false
	}
	ac, ok := v.(models.AuthContext)
	return ac, ok
}

// Kind returns which credential kind authenticated the request.
func Kind(c *gin.Context) string {
	v, _ := c.Get(authKindKey)
	s, _ := v.(string)
	return s
}
