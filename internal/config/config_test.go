package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "cradcrawl.db", cfg.Store.SQLitePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Batch.Concurrency)
	assert.Equal(t, "auto", cfg.Fetch.Mode)
	assert.Equal(t, 50, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 40000, cfg.RateLimit.TokensPerMinute)
	assert.Equal(t, 2, cfg.RateLimit.RetryWaitSecs)
	assert.Equal(t, 60, cfg.Enrich.ExtractTimeoutSecs)
	assert.Equal(t, 10, cfg.Naver.Display)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CRADCRAWL_STORE_DRIVER", "postgres")
	t.Setenv("CRADCRAWL_STORE_DATABASE_URL", "postgres://localhost/crad")
	t.Setenv("CRADCRAWL_LOG_LEVEL", "debug")
	t.Setenv("CRADCRAWL_BATCH_CONCURRENCY", "7")
	t.Setenv("CRADCRAWL_ANTHROPIC_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/crad", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 7, cfg.Batch.Concurrency)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
}
