package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaClient is a minimal HTTP client for a local Ollama runtime. It serves
// both chat generation and embeddings.
type OllamaClient struct {
	httpClient *http.Client
	host       string
	retry      retryPolicy
}

// NewOllamaClient creates a client targeting host (e.g. http://127.0.0.1:11434).
func NewOllamaClient(host string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *OllamaClient {
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 2
	}
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = time.Second
	}
	host = strings.TrimRight(host, "/")
	rp := newRetryPolicy(retryMax, baseDelay, maxDelay)
	rp.unreachableHost = host
	return &OllamaClient{httpClient: &http.Client{Timeout: httpTimeout}, host: host, retry: rp}
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// Generate sends a non-streaming /api/chat request.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	oreq := ollamaChatRequest{Model: req.Model, Messages: req.Messages, Options: map[string]any{}}
	if req.Temperature > 0 {
		oreq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		oreq.Options["num_predict"] = req.MaxTokens
	}
	if req.TopP > 0 {
		oreq.Options["top_p"] = req.TopP
	}
	if req.TopK > 0 {
		oreq.Options["top_k"] = req.TopK
	}

	var oresp ollamaChatResponse
	if _, err := c.retry.postJSON(ctx, c.httpClient, c.host+"/api/chat", nil, oreq, &oresp); err != nil {
		return nil, err
	}
	return &GenerateResponse{
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: oresp.Message.Content}}},
		RequestID: fmt.Sprintf("ollama_%d", time.Now().UnixNano()),
	}, nil
}

// Embed calls /api/embeddings once per input; the endpoint takes a single prompt.
func (c *OllamaClient) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if model == "" {
		return nil, errors.New("embedding model cannot be empty")
	}
	type reqBody struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	type respBody struct {
		Embedding []float64 `json:"embedding"`
	}
	out := make([][]float32, 0, len(inputs))
	for _, s := range inputs {
		var rb respBody
		if _, err := c.retry.postJSON(ctx, c.httpClient, c.host+"/api/embeddings", nil, reqBody{Model: model, Prompt: s}, &rb); err != nil {
			return nil, err
		}
		out = append(out, toFloat32(rb.Embedding))
	}
	return out, nil
}
