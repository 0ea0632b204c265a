package config_test

import (
	"testing"
	"time"

	"garment-lab/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, config.ProviderGemini, cfg.TextProvider)
	assert.Equal(t, config.ProviderGemini, cfg.ImageProvider)
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)

	text, image := cfg.Models()
	assert.Equal(t, "gemini-3-flash-preview", text)
	assert.Equal(t, "gemini-2.5-flash-image", image)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("TEXT_PROVIDER", " Ollama ")
	t.Setenv("IMAGE_PROVIDER", "openai")
	t.Setenv("OLLAMA_MODEL", "mistral")
	t.Setenv("OPENAI_IMAGE_MODEL", "gpt-image-1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)

	text, image := cfg.Models()
	assert.Equal(t, "mistral", text)
	assert.Equal(t, "gpt-image-1", image)
}

func TestLoadRejectsUnknownProviders(t *testing.T) {
	t.Setenv("IMAGE_PROVIDER", "ollama")
	_, err := config.Load()
	assert.ErrorContains(t, err, "invalid IMAGE_PROVIDER")

	t.Setenv("IMAGE_PROVIDER", "gemini")
	t.Setenv("TEXT_PROVIDER", "bard")
	_, err = config.Load()
	assert.ErrorContains(t, err, "invalid TEXT_PROVIDER")
}

func TestLoadLab(t *testing.T) {
	cfg, err := config.LoadLab()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.ServerURL)
	assert.Equal(t, 2, cfg.Concurrency)

	t.Setenv("LAB_CONCURRENCY", "0")
	_, err = config.LoadLab()
	assert.Error(t, err)
}
