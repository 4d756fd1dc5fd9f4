package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/diagnostic"
	"github.com/sells-group/prospect-cli/pkg/automation"
)

func testCfg(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "prospect.db"),
		},
		Automation: config.AutomationConfig{BaseURL: "http://automation.invalid"},
		Diagnostic: config.DiagnosticConfig{Provider: "webhook"},
		Pipeline:   config.PipelineConfig{DefaultMaxPerArea: 20, DefaultTenant: "default"},
		Server:     config.ServerConfig{Port: 8080},
	}
}

func TestPipelineEnv_Close_Nil(t *testing.T) {
	pe := &pipelineEnv{}
	assert.NotPanics(t, func() {
		pe.Close()
	})
}

func TestInitStore_SQLite(t *testing.T) {
	cfg = testCfg(t)

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, st.Ping(context.Background()))
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = testCfg(t)
	cfg.Store.Driver = "mysql"

	st, err := initStore(context.Background())
	assert.Nil(t, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestOpenStore_ValidatesConfig(t *testing.T) {
	cfg = testCfg(t)
	cfg.Store.DatabaseURL = ""

	st, err := openStore(context.Background())
	assert.Nil(t, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")
}

func TestInitPipeline_RequiresAutomationURL(t *testing.T) {
	cfg = testCfg(t)
	cfg.Automation.BaseURL = ""

	env, err := initPipeline(context.Background(), config.ModePipeline)
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "automation.base_url")
}

func TestInitPipeline_Local(t *testing.T) {
	cfg = testCfg(t)

	env, err := initPipeline(context.Background(), config.ModePipeline)
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Store)
	assert.NotNil(t, env.Pipeline)
	assert.NotEmpty(t, env.Catalog.Niches)
	assert.Nil(t, env.Redis)
}

func TestInitPipeline_SharedPacing(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg = testCfg(t)
	cfg.RateLimit = config.RateLimitConfig{Shared: true, RedisAddr: mr.Addr()}

	env, err := initPipeline(context.Background(), config.ModeServe)
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Redis)
}

func TestInitPipeline_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg = testCfg(t)
	cfg.RateLimit = config.RateLimitConfig{Shared: true, RedisAddr: addr}

	env, err := initPipeline(context.Background(), config.ModePipeline)
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}

func TestInitPipeline_BadCatalogPath(t *testing.T) {
	cfg = testCfg(t)
	cfg.Niche.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")

	env, err := initPipeline(context.Background(), config.ModePipeline)
	assert.Nil(t, env)
	assert.Error(t, err)
}

func TestNewDiagnoser(t *testing.T) {
	client := automation.NewClient("http://automation.invalid")

	cfg = testCfg(t)
	assert.Same(t, client, newDiagnoser(client))

	cfg.Diagnostic.Provider = "anthropic"
	cfg.Anthropic = config.AnthropicConfig{Key: "sk-test", Model: "claude-haiku-4-5-20251001", MaxTokens: 1024}
	_, ok := newDiagnoser(client).(*diagnostic.AnthropicDiagnoser)
	assert.True(t, ok)
}
