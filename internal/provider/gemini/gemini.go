package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"garment-lab/internal/gateway"

	"google.golang.org/genai"
)

const (
	DefaultTextModel  = "gemini-3-flash-preview"
	DefaultImageModel = "gemini-2.5-flash-image"
)

var ErrMissingAPIKey = errors.New("gemini api key is not configured")

// Provider talks to the Gemini API through the genai SDK.
type Provider struct {
	client *genai.Client
}

// New creates a provider. A missing api key is not fatal: the provider is
// created and every call fails with ErrMissingAPIKey.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	if apiKey == "" {
		slog.Warn("GEMINI_API_KEY is not set, gemini calls will fail")
		return &Provider{}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create gemini client: %w", err)
	}

	return &Provider{client: client}, nil
}

func (p *Provider) GenerateText(ctx context.Context, model, prompt, systemInstruction string) (string, error) {
	if p.client == nil {
		return "", apiError{err: ErrMissingAPIKey, code: "401"}
	}

	var config *genai.GenerateContentConfig
	if systemInstruction != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		}
	}

	res, err := p.client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return "", wrapError(err)
	}

	return res.Text(), nil
}

func (p *Provider) GenerateImage(ctx context.Context, model, prompt string) (*gateway.Image, error) {
	if p.client == nil {
		return nil, apiError{err: ErrMissingAPIKey, code: "401"}
	}

	res, err := p.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return nil, wrapError(err)
	}

	return firstInlineImage(res), nil
}

// firstInlineImage returns the first inline binary part of the first
// candidate, or nil if there is none.
func firstInlineImage(res *genai.GenerateContentResponse) *gateway.Image {
	if res == nil || len(res.Candidates) == 0 {
		return nil
	}
	candidate := res.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return nil
	}
	for _, part := range candidate.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		return &gateway.Image{Data: part.InlineData.Data, MediaType: part.InlineData.MIMEType}
	}
	return nil
}

type apiError struct {
	err  error
	code string
}

func (e apiError) Error() string     { return e.err.Error() }
func (e apiError) Unwrap() error     { return e.err }
func (e apiError) ErrorCode() string { return e.code }

func wrapError(err error) error {
	var value genai.APIError
	if errors.As(err, &value) {
		return apiError{err: err, code: apiErrorCode(value)}
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return apiError{err: err, code: apiErrorCode(*ptr)}
	}
	return fmt.Errorf("gemini generation failed: %w", err)
}

func apiErrorCode(e genai.APIError) string {
	if e.Code != 0 {
		return strconv.Itoa(e.Code)
	}
	return e.Status
}
