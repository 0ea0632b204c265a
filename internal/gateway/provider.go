package gateway

import (
	"context"
	"errors"
	"fmt"
)

// TextProvider generates text. An empty string with a nil error means the
// provider answered without content.
type TextProvider interface {
	GenerateText(ctx context.Context, model, prompt, systemInstruction string) (string, error)
}

// ImageProvider generates an image. A nil image with a nil error means the
// response carried no inline binary part.
type ImageProvider interface {
	GenerateImage(ctx context.Context, model, prompt string) (*Image, error)
}

type Provider interface {
	TextProvider
	ImageProvider
}

// CodedError is implemented by provider errors that expose a status or code
// field from the upstream API.
type CodedError interface {
	error
	ErrorCode() string
}

// ErrorCode extracts the provider supplied code from err, or CodeUnknown.
func ErrorCode(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCanceled
	}
	var coded CodedError
	if errors.As(err, &coded) {
		if code := coded.ErrorCode(); code != "" {
			return code
		}
	}
	return CodeUnknown
}

type splitProvider struct {
	text  TextProvider
	image ImageProvider
}

// SplitProvider combines a text capability and an image capability that may
// come from different backends. A nil capability fails every call.
func SplitProvider(text TextProvider, image ImageProvider) Provider {
	return &splitProvider{text: text, image: image}
}

var ErrCapabilityUnavailable = errors.New("capability not configured")

func (p *splitProvider) GenerateText(ctx context.Context, model, prompt, systemInstruction string) (string, error) {
	if p.text == nil {
		return "", fmt.Errorf("text generation: %w", ErrCapabilityUnavailable)
	}
	return p.text.GenerateText(ctx, model, prompt, systemInstruction)
}

func (p *splitProvider) GenerateImage(ctx context.Context, model, prompt string) (*Image, error) {
	if p.image == nil {
		return nil, fmt.Errorf("image generation: %w", ErrCapabilityUnavailable)
	}
	return p.image.GenerateImage(ctx, model, prompt)
}
