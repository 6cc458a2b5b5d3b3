package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is the dependency probe used by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RegisterHealthRoute registers the liveness/readiness endpoint.
//
// GET /health
// - Unauthenticated and never rate-limited
// - Probes both stores with a short timeout each; 200 when both respond,
//   503 with per-dependency detail otherwise
func RegisterHealthRoute(r gin.IRoutes, postgres, clickhouse Pinger) {
	r.GET("/health", func(c *gin.Context) {
		pg := probe(c.Request.Context(), postgres)
		ch := probe(c.Request.Context(), clickhouse)

		status := "ok"
		code := http.StatusOK
		if pg != "up" || ch != "up" {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":     status,
			"postgres":   pg,
			"clickhouse": ch,
		})
	})
}

func probe(ctx context.Context, p Pinger) string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return "down"
	}
	return "up"
}
