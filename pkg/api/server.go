// Package api exposes the read-only trust report surface the core
// pipeline feeds (spec.md §6 "Exposed read surface (collaborator, not
// core)", SPEC_FULL.md §6 expansion). It grants access to the state
// store's read operations only, plus the two out-of-band write signals
// spec.md names explicitly: notify-registered and notify-unregistered.
// No endpoint here writes agent, health, cache, or suspicious rows
// outside of those two signals — the periodic cycle remains the only
// other writer.
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/trustoracle/oracle/pkg/database"
	"github.com/trustoracle/oracle/pkg/indexer"
	"github.com/trustoracle/oracle/pkg/store"
)

// Server wires the state store's read path, the cascade-delete cache
// dependency, and an optional indexer client (for history enrichment)
// into a gin router.
type Server struct {
	store   *store.Store
	cache   *store.Cache
	db      *database.Client
	indexer *indexer.Client
	logger  *slog.Logger
}

// NewServer builds a Server. indexer may be nil — history enrichment from
// healthUpdateds is then skipped and the handler falls back to the
// store's own event log only.
func NewServer(s *store.Store, cache *store.Cache, db *database.Client, idx *indexer.Client) *Server {
	return &Server{
		store:   s,
		cache:   cache,
		db:      db,
		indexer: idx,
		logger:  slog.Default().With("component", "api"),
	}
}

// readAPIRateLimit is the sustained request rate (per client IP) the read
// API enforces on its own, independent of anything the core pipeline does
// (spec.md §5: the rate-limit table belongs to the read API, not the core).
const (
	readAPIRateLimit = 20.0
	readAPIBurst     = 40
)

// Router builds the gin engine with every route this package exposes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(s.logger))
	r.Use(rateLimit(readAPIRateLimit, readAPIBurst))

	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(metricsHandler()))

	r.GET("/agents", s.listAgentsHandler)
	r.GET("/agents/:id", s.getAgentHandler)
	r.GET("/agents/:id/history", s.getAgentHistoryHandler)
	r.GET("/agents/:id/trends", s.getAgentTrendsHandler)

	internal := r.Group("/internal")
	internal.POST("/agents/:id/registered", s.notifyRegisteredHandler)
	internal.DELETE("/agents/:id", s.notifyUnregisteredHandler)

	return r
}
