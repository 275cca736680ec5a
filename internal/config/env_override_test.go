package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides_Precedence(t *testing.T) {
	t.Run("OPENAI_API_KEY sets provider if empty", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("ANTHROPIC_API_KEY", "")
		t.Setenv("ZAI_API_KEY", "")
		t.Setenv("PLANFORGE_API_KEY", "")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, "openai", cfg.LLM.Provider)
	})

	t.Run("ANTHROPIC_API_KEY wins over OPENAI_API_KEY", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")
		t.Setenv("ZAI_API_KEY", "")
		t.Setenv("PLANFORGE_API_KEY", "")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "ant-key", cfg.LLM.APIKey)
		assert.Equal(t, "anthropic", cfg.LLM.Provider)
	})

	t.Run("PLANFORGE_API_KEY overrides key but not provider", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")
		t.Setenv("ZAI_API_KEY", "")
		t.Setenv("PLANFORGE_API_KEY", "pf-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "pf-key", cfg.LLM.APIKey)
		assert.Equal(t, "anthropic", cfg.LLM.Provider)
	})
}

func TestEnvOverrides_BaseURLAndModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ZAI_API_KEY", "")
	t.Setenv("PLANFORGE_API_KEY", "")
	t.Setenv("PLANFORGE_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("PLANFORGE_MODEL", "local-model")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "http://localhost:8080/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "local-model", cfg.LLM.Model)
}

func TestEnvOverrides_Embedding(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg := &Config{}
	cfg.applyEnvOverrides()

	require.Equal(t, "gem-key", cfg.Knowledge.Embedding.APIKey)
	assert.Equal(t, "gemini", cfg.Knowledge.Embedding.Provider)

	t.Run("does not override explicit provider", func(t *testing.T) {
		cfg := &Config{}
		cfg.Knowledge.Embedding.Provider = "genai"
		cfg.applyEnvOverrides()

		assert.Equal(t, "genai", cfg.Knowledge.Embedding.Provider)
	})
}
