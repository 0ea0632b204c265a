package cmd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	"garment-lab/internal/config"
	"garment-lab/internal/gateway"
	"garment-lab/internal/provider/gemini"
	"garment-lab/internal/provider/langchain"
	"garment-lab/internal/provider/openai"

	"github.com/joho/godotenv"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// InitializeGateway builds the text and image providers selected by cfg and
// wraps them in a Gateway.
func InitializeGateway(ctx context.Context, cfg config.Config) (*gateway.Gateway, error) {
	var (
		geminiProvider *gemini.Provider
		openaiProvider *openai.Provider
		err            error
	)

	if cfg.TextProvider == config.ProviderGemini || cfg.ImageProvider == config.ProviderGemini {
		geminiProvider, err = gemini.New(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("error initializing gemini provider: %w", err)
		}
	}
	if cfg.TextProvider == config.ProviderOpenAI || cfg.ImageProvider == config.ProviderOpenAI {
		openaiProvider = openai.New(cfg.OpenAIAPIKey)
	}

	var text gateway.TextProvider
	switch cfg.TextProvider {
	case config.ProviderGemini:
		text = geminiProvider
	case config.ProviderOpenAI:
		text = openaiProvider
	case config.ProviderOllama:
		ollama, err := langchain.NewOllama(cfg.OllamaServerURL, cfg.OllamaModel)
		if err != nil {
			return nil, fmt.Errorf("error initializing ollama provider: %w", err)
		}
		text = ollama
	}

	var image gateway.ImageProvider
	switch cfg.ImageProvider {
	case config.ProviderGemini:
		image = geminiProvider
	case config.ProviderOpenAI:
		image = openaiProvider
	}

	textModel, imageModel := cfg.Models()
	slog.Info("generation gateway configured",
		"text_provider", cfg.TextProvider, "text_model", textModel,
		"image_provider", cfg.ImageProvider, "image_model", imageModel)

	return gateway.New(gateway.SplitProvider(text, image), gateway.Models{Text: textModel, Image: imageModel}), nil
}
