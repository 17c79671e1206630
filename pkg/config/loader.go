package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Load reads the oracle's configuration from the environment (spec.md §6)
// and validates mandatory fields. A missing mandatory variable is a
// misconfiguration-at-startup error (spec.md §7): the caller should treat
// it as fatal.
func Load() (*Config, error) {
	cfg := &Config{
		RPCURL:             os.Getenv("RPC_URL"),
		PrivateKey:         os.Getenv("PRIVATE_KEY"),
		IndexerURL:         os.Getenv("INDEXER_URL"),
		LLMAPIKey:          os.Getenv("LLM_API_KEY"),
		StateStoreURI:      os.Getenv("STATE_STORE_URI"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		IdentityRegistry:   os.Getenv("IDENTITY_REGISTRY"),
		HealthMonitor:      os.Getenv("HEALTH_MONITOR"),
		ReputationRegistry: os.Getenv("REPUTATION_REGISTRY"),
		OracleToken:        os.Getenv("ORACLE_TOKEN"),
		MetadataGateway:    getEnv("METADATA_GATEWAY", DefaultMetadataGateway),
		LLMModel:           getEnv("LLM_MODEL", DefaultLLMModel),
		HTTPAddr:           getEnv("HTTP_ADDR", DefaultHTTPAddr),
	}

	interval, err := parseSecondsEnv("CYCLE_INTERVAL_SEC", DefaultCycleInterval)
	if err != nil {
		return nil, err
	}
	cfg.CycleInterval = interval

	ttl, err := parseSecondsEnv("CACHE_TTL_SEC", DefaultCacheTTL)
	if err != nil {
		return nil, err
	}
	cfg.CacheTTL = ttl

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"RPC_URL":           c.RPCURL,
		"PRIVATE_KEY":       c.PrivateKey,
		"STATE_STORE_URI":   c.StateStoreURI,
		"HEALTH_MONITOR":    c.HealthMonitor,
		"IDENTITY_REGISTRY": c.IdentityRegistry,
	}
	for field, value := range required {
		if value == "" {
			return &ValidationError{Field: field, Err: ErrMissingRequiredField}
		}
	}
	return nil
}

func parseSecondsEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValidationError{Field: key, Err: fmt.Errorf("%w: %v", ErrInvalidValue, err)}
	}
	return time.Duration(secs) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
