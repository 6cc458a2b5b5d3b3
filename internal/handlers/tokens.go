package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowmetric/ingest-gateway/internal/auth"
	"github.com/flowmetric/ingest-gateway/internal/models"
)

// RegisterTokenRoutes registers the widget-token minting endpoint.
//
// POST /v1/widget-tokens
// - Only long-lived API keys may mint; presenting a widget token here is a
//   rejected token-for-token exchange
// - traceId and sessionId scope the minted token to one conversation
func RegisterTokenRoutes(r gin.IRoutes, codec *auth.TokenCodec) {
	r.POST("/widget-tokens", func(c *gin.Context) {
		authCtx, ok := auth.FromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error: "unauthorized", Code: models.CodeUnauthorized,
			})
			return
		}
		if auth.Kind(c) != auth.KindAPIKey {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error: "widget tokens can only be minted with an API key",
				Code:  models.CodeTokenExchangeRejected,
			})
			return
		}

		var req models.WidgetTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "invalid JSON payload", Code: models.CodeInvalidPayload,
			})
			return
		}
		if req.TraceID == "" || req.SessionID == "" {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "traceId and sessionId are required",
				Code:  models.CodeMissingField,
			})
			return
		}

		token, expires, err := codec.Mint(authCtx.ProjectID, authCtx.WorkspaceID, req.TraceID, req.SessionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error: "token minting failed", Code: models.CodeInternalError,
			})
			return
		}

		c.JSON(http.StatusOK, models.WidgetTokenResponse{
			Token:     token,
			ExpiresAt: expires.UTC().Format(time.RFC3339),
		})
	})
}
