package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(1024), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 60, cfg.Anthropic.TimeoutSecs)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.InDelta(t, 4.0, cfg.Fetch.RequestsPerSecond, 0.001)
	assert.True(t, cfg.Pipeline.ChainPhase2)
	assert.False(t, cfg.Pipeline.AnnotateWithAI)
	assert.Equal(t, 10, cfg.Batch.GroupSize)
	assert.Equal(t, 500, cfg.Batch.RecordDelayMS)
	assert.Equal(t, 5000, cfg.Batch.GroupDelayMS)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: sqlite
  sqlite_path: local.db
fetch:
  timeout_secs: 15
pipeline:
  chain_phase2: false
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "local.db", cfg.Store.SQLitePath)
	assert.Equal(t, 15, cfg.Fetch.TimeoutSecs)
	assert.False(t, cfg.Pipeline.ChainPhase2)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values.
	assert.Equal(t, 10, cfg.Batch.GroupSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0644))

	t.Setenv("COINASSAY_STORE_DRIVER", "postgres")
	t.Setenv("COINASSAY_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chtemp(t)
	t.Setenv("COINASSAY_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func validBase() *Config {
	return &Config{
		Store:  StoreConfig{Driver: "sqlite", SQLitePath: "x.db"},
		Fetch:  FetchConfig{TimeoutSecs: 30},
		Server: ServerConfig{Port: 8080},
	}
}

func TestValidateAnalyze(t *testing.T) {
	cfg := validBase()
	assert.NoError(t, cfg.Validate("analyze"))

	cfg.Store.SQLitePath = ""
	err := cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite_path")
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	cfg := validBase()
	cfg.Store = StoreConfig{Driver: "postgres"}
	err := cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")

	cfg.Store.DatabaseURL = "postgres://localhost/coinassay"
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateServePort(t *testing.T) {
	cfg := validBase()
	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidateImportNeedsNotion(t *testing.T) {
	cfg := validBase()
	err := cfg.Validate("import")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "notion.token")
	assert.Contains(t, err.Error(), "notion.queue_db")

	cfg.Notion = NotionConfig{Token: "ntn_x", QueueDB: "db-id"}
	assert.NoError(t, cfg.Validate("import"))
}

func TestValidateAIAnnotationNeedsKey(t *testing.T) {
	cfg := validBase()
	cfg.Pipeline.AnnotateWithAI = true
	err := cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key")

	cfg.Anthropic.Key = "sk-ant-x"
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateFetchTimeoutBounds(t *testing.T) {
	cfg := validBase()
	cfg.Fetch.TimeoutSecs = 0
	assert.Error(t, cfg.Validate("analyze"))

	cfg.Fetch.TimeoutSecs = 301
	assert.Error(t, cfg.Validate("analyze"))

	cfg.Fetch.TimeoutSecs = 120
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validBase().Validate("enrich")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
