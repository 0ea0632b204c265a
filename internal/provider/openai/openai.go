package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"garment-lab/internal/gateway"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultTextModel  = "gpt-4o-mini"
	DefaultImageModel = "dall-e-3"
)

type Provider struct {
	client  openai.Client
	timeout time.Duration
}

func New(apiKey string, opts ...option.RequestOption) *Provider {
	if apiKey == "" {
		slog.Warn("OPENAI_API_KEY is not set, openai calls will fail")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Provider{
		client:  openai.NewClient(opts...),
		timeout: 90 * time.Second,
	}
}

func (p *Provider) GenerateText(ctx context.Context, model, prompt, systemInstruction string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if len(systemInstruction) > 0 {
		messages = append(messages, openai.SystemMessage(systemInstruction))
	}
	messages = append(messages, openai.UserMessage(prompt))

	res, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    model,
	})
	if err != nil {
		return "", wrapError(err)
	}

	if len(res.Choices) == 0 {
		return "", nil
	}
	return res.Choices[0].Message.Content, nil
}

func (p *Provider) GenerateImage(ctx context.Context, model, prompt string) (*gateway.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res, err := p.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(model),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, wrapError(err)
	}

	if len(res.Data) == 0 || res.Data[0].B64JSON == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(res.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("openai returned undecodable image data: %w", err)
	}

	// b64 image responses are always PNG encoded
	return &gateway.Image{Data: data, MediaType: "image/png"}, nil
}

type apiError struct {
	err  error
	code string
}

func (e *apiError) Error() string     { return e.err.Error() }
func (e *apiError) Unwrap() error     { return e.err }
func (e *apiError) ErrorCode() string { return e.code }

func wrapError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) && apierr.StatusCode != 0 {
		return &apiError{err: err, code: strconv.Itoa(apierr.StatusCode)}
	}
	slog.Error("openai error: request failed", "error", err)
	return fmt.Errorf("openai generation failed: %w", err)
}
