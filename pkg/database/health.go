package database

import (
	"context"
	"database/sql"
	"time"
)

// CachePinger is the reachability probe for the Redis-backed LLM response
// cache, satisfied by store.Cache without importing it here.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// BackendCheck is one storage backend's slice of the health report.
type BackendCheck struct {
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
	ResponseTimeMs int64  `json:"responseTimeMs"`

	// Pool statistics, reported for Postgres only.
	OpenConnections int   `json:"openConnections,omitempty"`
	InUse           int   `json:"inUse,omitempty"`
	Idle            int   `json:"idle,omitempty"`
	WaitCount       int64 `json:"waitCount,omitempty"`
	MaxOpenConns    int   `json:"maxOpenConns,omitempty"`
}

// StoreHealth aggregates the oracle's two storage backends: the Postgres
// half of the state store (agents, health events, suspicious counters,
// faucet claims, config) and the Redis LLM-response cache.
type StoreHealth struct {
	Status   string       `json:"status"`
	Postgres BackendCheck `json:"postgres"`
	Cache    BackendCheck `json:"cache"`
}

// CheckStores pings both backends. Postgres down means unhealthy: every
// pipeline write lands there. An unreachable cache only degrades, since
// the LLM layer treats every lookup as a miss and keeps working.
func CheckStores(ctx context.Context, db *sql.DB, cache CachePinger) StoreHealth {
	health := StoreHealth{Status: "healthy"}

	start := time.Now()
	if err := db.PingContext(ctx); err != nil {
		health.Status = "unhealthy"
		health.Postgres = BackendCheck{
			Status:         "unhealthy",
			Message:        err.Error(),
			ResponseTimeMs: time.Since(start).Milliseconds(),
		}
	} else {
		stats := db.Stats()
		health.Postgres = BackendCheck{
			Status:          "healthy",
			ResponseTimeMs:  time.Since(start).Milliseconds(),
			OpenConnections: stats.OpenConnections,
			InUse:           stats.InUse,
			Idle:            stats.Idle,
			WaitCount:       stats.WaitCount,
			MaxOpenConns:    stats.MaxOpenConnections,
		}
	}

	start = time.Now()
	if err := cache.Ping(ctx); err != nil {
		if health.Status == "healthy" {
			health.Status = "degraded"
		}
		health.Cache = BackendCheck{
			Status:         "unhealthy",
			Message:        err.Error(),
			ResponseTimeMs: time.Since(start).Milliseconds(),
		}
	} else {
		health.Cache = BackendCheck{
			Status:         "healthy",
			ResponseTimeMs: time.Since(start).Milliseconds(),
		}
	}

	return health
}
