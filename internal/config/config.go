package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Port int `env:"PORT" envDefault:"3000"`

	TextProvider  string `env:"TEXT_PROVIDER" envDefault:"gemini"`
	ImageProvider string `env:"IMAGE_PROVIDER" envDefault:"gemini"`

	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	GeminiTextModel  string `env:"GEMINI_TEXT_MODEL" envDefault:"gemini-3-flash-preview"`
	GeminiImageModel string `env:"GEMINI_IMAGE_MODEL" envDefault:"gemini-2.5-flash-image"`

	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAITextModel  string `env:"OPENAI_TEXT_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIImageModel string `env:"OPENAI_IMAGE_MODEL" envDefault:"dall-e-3"`

	OllamaServerURL string `env:"OLLAMA_SERVER_URL" envDefault:"http://localhost:11434"`
	OllamaModel     string `env:"OLLAMA_MODEL" envDefault:"llama3.1"`

	PolicyFile         string        `env:"POLICY_FILE"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"120s"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// LabConfig configures the cmd/lab client.
type LabConfig struct {
	ServerURL   string `env:"LAB_SERVER_URL" envDefault:"http://localhost:3000"`
	Concurrency int    `env:"LAB_CONCURRENCY" envDefault:"2"`
	OutputDir   string `env:"LAB_OUTPUT_DIR" envDefault:"."`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadLab() (LabConfig, error) {
	var cfg LabConfig
	if err := env.Parse(&cfg); err != nil {
		return LabConfig{}, fmt.Errorf("error parsing config: %w", err)
	}
	if cfg.Concurrency < 1 {
		return LabConfig{}, fmt.Errorf("LAB_CONCURRENCY must be at least 1, got %d", cfg.Concurrency)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.TextProvider = strings.ToLower(strings.TrimSpace(c.TextProvider))
	c.ImageProvider = strings.ToLower(strings.TrimSpace(c.ImageProvider))

	switch c.TextProvider {
	case ProviderGemini, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("invalid TEXT_PROVIDER %q: must be one of gemini, openai, ollama", c.TextProvider)
	}
	switch c.ImageProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid IMAGE_PROVIDER %q: must be one of gemini, openai", c.ImageProvider)
	}

	if c.uses(ProviderGemini) && c.GeminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY is not set, gemini requests will fail")
	}
	if c.uses(ProviderOpenAI) && c.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY is not set, openai requests will fail")
	}
	return nil
}

func (c *Config) uses(provider string) bool {
	return c.TextProvider == provider || c.ImageProvider == provider
}

// Models returns the text and image model identifiers for the configured providers.
func (c *Config) Models() (text, image string) {
	switch c.TextProvider {
	case ProviderOpenAI:
		text = c.OpenAITextModel
	case ProviderOllama:
		text = c.OllamaModel
	default:
		text = c.GeminiTextModel
	}
	if c.ImageProvider == ProviderOpenAI {
		image = c.OpenAIImageModel
	} else {
		image = c.GeminiImageModel
	}
	return text, image
}
