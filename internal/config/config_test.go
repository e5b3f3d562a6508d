package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
	assert.Equal(t, "documents_collection", cfg.CollectionName)
	assert.Equal(t, 6, cfg.HistoryWindow)
	assert.Equal(t, 5, cfg.DefaultTopK)
	assert.True(t, cfg.RecreateOnIngest)
	assert.Equal(t, 7*24*time.Hour, cfg.ConversationTTL())
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	content := []byte("DB_HOST=loaded-from-file\nOPENAI_API_KEY=sk-file")
	err := os.WriteFile(".env", content, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(".env")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "loaded-from-file", cfg.DBHost)
}

func TestLoadConfig_Providers(t *testing.T) {
	t.Setenv("EMBED_PROVIDER", "local")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("VECTOR_BACKEND", "memory")
	t.Setenv("GENERATOR_TIMEOUT_SECONDS", "15")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.EmbedProvider)
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.Equal(t, "memory", cfg.VectorBackend)
	assert.Equal(t, 15*time.Second, cfg.GeneratorTimeout())
}

func TestLoadConfig_MissingProviderKey(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := config.Load()
	assert.ErrorIs(t, err, config.ErrMissingRequired)
}
