package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"plant-doctor/api/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		GeminiAPIKey: "test-key",
		GeminiModel:  "gemini-1.5-flash",
		OpenAIModel:  "gpt-4o-mini",
		DefaultLLM:   "gemini",
		ModelTimeout: 5 * time.Second,
		CacheBackend: config.CacheNone,
		CacheTTL:     time.Hour,
	}
}

func TestBuildGeminiOnly(t *testing.T) {
	a, err := Build(context.Background(), baseConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"gemini"}, a.Flows.Engines().Names())
	assert.Equal(t, "gemini", a.Flows.Engine().Name())
	assert.Equal(t, "gemini-1.5-flash", a.Flows.Engine().GetModel())
	assert.Nil(t, a.Health)
	assert.NotEmpty(t, a.Catalog.Diseases())
}

func TestBuildWithOpenAIDefault(t *testing.T) {
	cfg := baseConfig()
	cfg.OpenAIAPIKey = "sk-test"
	cfg.DefaultLLM = "openai"

	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"gemini", "gpt"}, a.Flows.Engines().Names())
	assert.Equal(t, "gpt", a.Flows.Engine().Name())
	assert.Equal(t, "gpt-4o-mini", a.Flows.Engine().GetModel())
}

func TestBuildDefaultWithoutKey(t *testing.T) {
	cfg := baseConfig()
	cfg.DefaultLLM = "gpt"

	_, err := Build(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestBuildMissingGoogleKey(t *testing.T) {
	cfg := baseConfig()
	cfg.GeminiAPIKey = ""

	_, err := Build(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "GOOGLE_API_KEY")
}

func TestBuildRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.CacheBackend = config.CacheRedis
	cfg.RedisURL = "redis://" + mr.Addr()

	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Health)
	assert.NoError(t, a.Health(context.Background()))

	mr.Close()
	assert.Error(t, a.Health(context.Background()))
}

func TestBuildRedisUnreachable(t *testing.T) {
	cfg := baseConfig()
	cfg.CacheBackend = config.CacheRedis
	cfg.RedisURL = "redis://127.0.0.1:1"

	_, err := Build(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "redis ping")
}
