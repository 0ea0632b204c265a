package langchain

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama3.1"
)

// TextProvider generates text through any langchaingo model. It has no image
// capability and is combined with an image provider via
// gateway.SplitProvider.
type TextProvider struct {
	llm llms.Model
}

func New(llm llms.Model) *TextProvider {
	return &TextProvider{llm: llm}
}

func NewOllama(serverURL, model string) (*TextProvider, error) {
	llm, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("could not create ollama client: %w", err)
	}
	return New(llm), nil
}

func (p *TextProvider) GenerateText(ctx context.Context, model, prompt, systemInstruction string) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if systemInstruction != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemInstruction))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	var opts []llms.CallOption
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}

	resp, err := p.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("langchain generation failed: %w", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}
