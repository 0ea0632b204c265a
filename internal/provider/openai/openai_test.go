package openai_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"garment-lab/internal/gateway"
	"garment-lab/internal/provider/openai"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *openai.Provider {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return openai.New("test-key", option.WithBaseURL(server.URL+"/"), option.WithMaxRetries(0))
}

func TestGenerateText(t *testing.T) {
	var received map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"tailored wool coat"}}]}`))
	})

	text, err := p.GenerateText(context.Background(), "gpt-4o-mini", "a coat", "be structural")
	require.NoError(t, err)
	assert.Equal(t, "tailored wool coat", text)

	assert.Equal(t, "gpt-4o-mini", received["model"])
	messages, ok := received["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestGenerateImage(t *testing.T) {
	payload := []byte("\x89PNG fake image")
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "b64_json", body["response_format"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]any{{"b64_json": base64.StdEncoding.EncodeToString(payload)}},
		})
	})

	img, err := p.GenerateImage(context.Background(), "dall-e-3", "a coat")
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, payload, img.Data)
	assert.Equal(t, "image/png", img.MediaType)
}

func TestGenerateImageWithoutData(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":1,"data":[]}`))
	})

	img, err := p.GenerateImage(context.Background(), "dall-e-3", "a coat")
	require.NoError(t, err)
	assert.Nil(t, img)
}

func TestErrorCodeFromStatus(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`))
	})

	_, err := p.GenerateText(context.Background(), "gpt-4o-mini", "a coat", "")
	require.Error(t, err)
	assert.Equal(t, "429", gateway.ErrorCode(err))
}
