package httpserver

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/flowmetric/ingest-gateway/internal/auth"
	"github.com/flowmetric/ingest-gateway/internal/config"
	"github.com/flowmetric/ingest-gateway/internal/handlers"
	"github.com/flowmetric/ingest-gateway/internal/pipeline"
	"github.com/flowmetric/ingest-gateway/internal/ratelimit"
	"github.com/flowmetric/ingest-gateway/internal/writer"
)

// Deps are the gateway's collaborators, constructor-injected so tests can
// run multiple isolated instances without cross-test leakage.
type Deps struct {
	Resolver   *auth.Resolver
	Codec      *auth.TokenCodec
	Limiter    ratelimit.Limiter
	Pipeline   *pipeline.Pipeline
	Writer     *writer.Writer
	Postgres   handlers.Pinger
	ClickHouse handlers.Pinger
	Logger     *slog.Logger
}

// NewRouter wires the public health endpoint and the authenticated v1 API.
//
// Middleware order on /v1 matters: the address bucket is charged before
// authentication, the credential bucket after.
func NewRouter(cfg config.Config, d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(CORS())
	r.Use(RequestLogger(logger))

	handlers.RegisterHealthRoute(r, d.Postgres, d.ClickHouse)

	v1 := r.Group("/v1")
	v1.Use(AddrRateLimit(d.Limiter, logger))
	v1.Use(auth.Middleware(d.Resolver, d.Codec))
	v1.Use(KeyRateLimit(d.Limiter, logger))

	handlers.RegisterEventRoutes(v1, d.Pipeline, d.Writer, cfg.MaxBodyBytes)
	handlers.RegisterTokenRoutes(v1, d.Codec)

	return r
}
