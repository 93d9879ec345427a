package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiGenerateMapsRolesAndConfig(t *testing.T) {
	var got geminiGenerateRequest
	var key string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/models/gemini-2.5-flash:generateContent" {
			http.NotFound(w, r)
			return
		}
		key = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": []any{
					map[string]any{"text": "Over budget "},
					map[string]any{"text": "by 10%."},
				}},
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 12, "candidatesTokenCount": 5, "totalTokenCount": 17},
			"responseId":    "resp-1",
		})
	}))
	defer srv.Close()

	c := NewGeminiClientWithBaseURL("k123", 2*time.Second, 1, 0, 0, srv.URL)
	resp, err := c.Generate(context.Background(), GenerateRequest{
		Model: "gemini-2.5-flash",
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
			{Role: "user", Content: "report"},
		},
		MaxTokens:   2048,
		Temperature: 0.3,
		TopP:        0.8,
		TopK:        40,
	})
	require.NoError(t, err)
	assert.Equal(t, "k123", key, "api key header")
	assert.Equal(t, "Over budget by 10%.", resp.Text())
	assert.Equal(t, 17, resp.Usage.TotalTokens)
	assert.Equal(t, "resp-1", resp.RequestID)

	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "be brief", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 3)
	assert.Equal(t, "model", got.Contents[1].Role)
	require.NotNil(t, got.GenerationConfig)
	assert.Equal(t, 40, got.GenerationConfig.TopK)
	assert.Equal(t, 2048, got.GenerationConfig.MaxOutputTokens)
}

func TestGeminiBlockedPrompt(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"promptFeedback": map[string]any{"blockReason": "SAFETY"}})
	}))
	defer srv.Close()

	c := NewGeminiClientWithBaseURL("k", 2*time.Second, 1, 0, 0, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "x"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGeminiInvalidKeyIsAuthError(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{
			"code": 400, "message": "API key not valid. Please pass a valid API key.", "status": "INVALID_ARGUMENT",
		}})
	}))
	defer srv.Close()

	c := NewGeminiClientWithBaseURL("bad", 2*time.Second, 1, 0, 0, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "x"}}})
	var ae *AuthError
	assert.ErrorAs(t, err, &ae)
}

func TestGeminiBatchEmbed(t *testing.T) {
	var n int
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/text-embedding-004:batchEmbedContents" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Requests []geminiEmbedRequest `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		n = len(body.Requests)
		if n > 0 && body.Requests[0].Model != "models/text-embedding-004" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		embs := make([]any, n)
		for i := range embs {
			embs[i] = map[string]any{"values": []float64{float64(i), 1}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embs})
	}))
	defer srv.Close()

	c := NewGeminiClientWithBaseURL("k", 2*time.Second, 1, 0, 0, srv.URL)
	vecs, err := c.Embed(context.Background(), "models/text-embedding-004", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, vecs, 2)
	assert.Equal(t, float32(1), vecs[1][0])
}

func TestRegistryResolvesAliases(t *testing.T) {
	for _, name := range []string{"gemini", "google", "openrouter", "ollama", "local"} {
		_, ok := GetRuntime(name, RuntimeConfig{})
		assert.True(t, ok, "provider %q not registered", name)
	}
	_, ok := GetRuntime("nope", RuntimeConfig{})
	assert.False(t, ok, "unknown provider resolved")
	_, err := GetEmbedder("gemini", "text-embedding-004", RuntimeConfig{})
	assert.NoError(t, err)
}
