// Command oracle runs the agent trust oracle: the periodic monitoring
// cycle (spec.md §4.1-§4.11) plus the read-only trust API that exposes
// the state store's read path (spec.md §6).
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/trustoracle/oracle/pkg/api"
	"github.com/trustoracle/oracle/pkg/chain"
	"github.com/trustoracle/oracle/pkg/config"
	"github.com/trustoracle/oracle/pkg/database"
	"github.com/trustoracle/oracle/pkg/discovery"
	"github.com/trustoracle/oracle/pkg/indexer"
	"github.com/trustoracle/oracle/pkg/llm"
	"github.com/trustoracle/oracle/pkg/metadata"
	"github.com/trustoracle/oracle/pkg/metrics"
	"github.com/trustoracle/oracle/pkg/orchestrator"
	"github.com/trustoracle/oracle/pkg/probe"
	"github.com/trustoracle/oracle/pkg/reputation"
	"github.com/trustoracle/oracle/pkg/scheduler"
	"github.com/trustoracle/oracle/pkg/store"
	"github.com/trustoracle/oracle/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "."),
		"Directory containing a .env file of oracle configuration")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with process environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	slog.Info("starting oracle", "version", version.Full())

	cfg, err := config.Load()
	if err != nil {
		// Misconfiguration at startup is fatal (spec.md §7).
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	st := cfg.Stats()
	slog.Info("configuration loaded",
		"cycleInterval", st.CycleInterval,
		"cacheTTL", st.CacheTTL,
		"hasIndexer", st.HasIndexer,
		"hasLLMKey", st.HasLLMKey,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg, err := database.LoadConfigFromEnv(cfg.StateStoreURI)
	if err != nil {
		slog.Error("invalid database configuration", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Warn("error closing database connection", "error", err)
		}
	}()
	slog.Info("connected to postgres and applied migrations")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := rdb.Close(); err != nil {
			slog.Warn("error closing redis connection", "error", err)
		}
	}()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	slog.Info("connected to redis", "addr", cfg.RedisAddr)

	stateStore := store.New(dbClient.DB())
	cache := store.NewCache(rdb)

	metricsSink := metrics.New()

	chainClient := chain.NewClient(cfg.RPCURL, cfg.PrivateKey, chain.Addresses{
		IdentityRegistry:   cfg.IdentityRegistry,
		HealthMonitor:      cfg.HealthMonitor,
		ReputationRegistry: cfg.ReputationRegistry,
	})
	indexerClient := indexer.NewClient(cfg.IndexerURL)
	probeClient := probe.New()
	metadataResolver := metadata.New(chainClient, cfg.MetadataGateway, config.PublicMetadataGateways)
	reputationFetcher := reputation.New(indexerClient, chainClient)
	discoveryService := discovery.New(indexerClient, chainClient)
	llmClient := llm.New(cfg.LLMAPIKey, cfg.LLMModel, cache).
		WithMetrics(metricsSink).
		WithCacheTTL(cfg.CacheTTL)

	pipeline := orchestrator.New(discoveryService, probeClient, metadataResolver, reputationFetcher, llmClient, chainClient, stateStore, metricsSink)

	sched := scheduler.New(cfg.CycleInterval, pipeline.RunCycle)
	sched.Start(ctx)

	apiServer := api.NewServer(stateStore, cache, dbClient, indexerClient)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiServer.Router(),
	}

	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received, draining")

	// The scheduler refuses to start a new cycle and waits for any
	// in-flight cycle to finish or hit its own timeouts (spec.md §5).
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error shutting down http server", "error", err)
	}

	slog.Info("oracle stopped")
}
