package gemini

import (
	"context"
	"errors"
	"testing"

	"garment-lab/internal/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestFirstInlineImage(t *testing.T) {
	res := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "here is your coat"},
				{InlineData: &genai.Blob{Data: []byte("png-bytes"), MIMEType: "image/png"}},
			}},
		}},
	}

	img := firstInlineImage(res)
	require.NotNil(t, img)
	assert.Equal(t, gateway.Image{Data: []byte("png-bytes"), MediaType: "image/png"}, *img)
}

func TestFirstInlineImageMissing(t *testing.T) {
	assert.Nil(t, firstInlineImage(nil))
	assert.Nil(t, firstInlineImage(&genai.GenerateContentResponse{}))
	assert.Nil(t, firstInlineImage(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "text only"}}}}},
	}))
}

func TestMissingAPIKey(t *testing.T) {
	p, err := New(context.Background(), "")
	require.NoError(t, err)

	_, err = p.GenerateText(context.Background(), DefaultTextModel, "hello", "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Equal(t, "401", gateway.ErrorCode(err))

	img, err := p.GenerateImage(context.Background(), DefaultImageModel, "hello")
	assert.Nil(t, img)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestWrapError(t *testing.T) {
	err := wrapError(genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"})
	assert.Equal(t, "429", gateway.ErrorCode(err))

	err = wrapError(genai.APIError{Status: "UNAVAILABLE"})
	assert.Equal(t, "UNAVAILABLE", gateway.ErrorCode(err))

	err = wrapError(errors.New("dial tcp: refused"))
	assert.Equal(t, gateway.CodeUnknown, gateway.ErrorCode(err))
}
