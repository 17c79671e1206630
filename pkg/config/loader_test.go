package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMandatoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RPC_URL", "https://rpc.example.test")
	t.Setenv("PRIVATE_KEY", "0xdeadbeef")
	t.Setenv("STATE_STORE_URI", "postgres://oracle@localhost/oracle")
	t.Setenv("HEALTH_MONITOR", "0xHealthMonitor")
	t.Setenv("IDENTITY_REGISTRY", "0xIdentityRegistry")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setMandatoryEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultCycleInterval, cfg.CycleInterval)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.Equal(t, DefaultMetadataGateway, cfg.MetadataGateway)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
}

func TestLoadHonorsOverrides(t *testing.T) {
	setMandatoryEnv(t)
	t.Setenv("CYCLE_INTERVAL_SEC", "30")
	t.Setenv("CACHE_TTL_SEC", "60")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.CycleInterval)
	assert.Equal(t, 60*time.Second, cfg.CacheTTL)
}

func TestLoadFailsOnMissingMandatoryField(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("PRIVATE_KEY", "")
	t.Setenv("STATE_STORE_URI", "")
	t.Setenv("HEALTH_MONITOR", "")
	t.Setenv("IDENTITY_REGISTRY", "")

	_, err := Load()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestLoadRejectsNonNumericInterval(t *testing.T) {
	setMandatoryEnv(t)
	t.Setenv("CYCLE_INTERVAL_SEC", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}
