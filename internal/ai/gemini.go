package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GeminiClient calls the Generative Language API (generateContent and
// batchEmbedContents).
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	retry      retryPolicy
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
}

type geminiGenerateRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ResponseID string `json:"responseId"`
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiBatchEmbedResponse struct {
	Embeddings []struct {
		Values []float64 `json:"values"`
	} `json:"embeddings"`
}

// NewGeminiClient returns a Gemini client with the given timeout and backoff.
func NewGeminiClient(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *GeminiClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &GeminiClient{
		httpClient: &http.Client{Timeout: httpTimeout},
		apiKey:     apiKey,
		baseURL:    "https://generativelanguage.googleapis.com/v1beta",
		retry:      newRetryPolicy(retryMax, baseDelay, maxDelay),
	}
}

// NewGeminiClientWithBaseURL allows injecting a custom base URL (used in tests).
func NewGeminiClientWithBaseURL(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, baseURL string) *GeminiClient {
	c := NewGeminiClient(apiKey, httpTimeout, retryMax, baseDelay, maxDelay)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

func (c *GeminiClient) endpoint(model, method string) string {
	model = strings.TrimPrefix(model, "models/")
	return fmt.Sprintf("%s/models/%s:%s", c.baseURL, url.PathEscape(model), method)
}

func (c *GeminiClient) headers() http.Header {
	h := http.Header{}
	h.Set("x-goog-api-key", c.apiKey)
	return h
}

// Generate maps chat messages onto Gemini contents: system messages become
// the system instruction and assistant turns use the "model" role.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is missing")
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	greq := geminiGenerateRequest{}
	var system []geminiPart
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, geminiPart{Text: m.Content})
		case "assistant", "model":
			greq.Contents = append(greq.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			greq.Contents = append(greq.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		greq.SystemInstruction = &geminiContent{Parts: system}
	}
	if req.Temperature > 0 || req.MaxTokens > 0 || req.TopP > 0 || req.TopK > 0 {
		greq.GenerationConfig = &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
			TopP:            req.TopP,
			TopK:            req.TopK,
		}
	}

	var gresp geminiGenerateResponse
	reqID, err := c.retry.postJSON(ctx, c.httpClient, c.endpoint(req.Model, "generateContent"), c.headers(), greq, &gresp)
	if err != nil {
		return nil, err
	}
	if len(gresp.Candidates) == 0 {
		if gresp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("gemini returned no candidates (blocked: %s)", gresp.PromptFeedback.BlockReason)
		}
		return nil, errors.New("gemini returned no candidates")
	}
	var text strings.Builder
	for _, p := range gresp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	if reqID == "" {
		reqID = gresp.ResponseID
	}
	return &GenerateResponse{
		ID:      gresp.ResponseID,
		Choices: []Choice{{Message: Message{Role: "assistant", Content: text.String()}}},
		Usage: Usage{
			PromptTokens:     gresp.UsageMetadata.PromptTokenCount,
			CompletionTokens: gresp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gresp.UsageMetadata.TotalTokenCount,
		},
		RequestID: reqID,
	}, nil
}

// Embed returns one vector per input using batchEmbedContents.
func (c *GeminiClient) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if c.apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is missing")
	}
	if model == "" {
		return nil, errors.New("embedding model cannot be empty")
	}
	if len(inputs) == 0 {
		return nil, errors.New("inputs cannot be empty")
	}
	name := "models/" + strings.TrimPrefix(model, "models/")
	reqs := make([]geminiEmbedRequest, len(inputs))
	for i, in := range inputs {
		reqs[i] = geminiEmbedRequest{Model: name, Content: geminiContent{Parts: []geminiPart{{Text: in}}}}
	}
	var out geminiBatchEmbedResponse
	payload := map[string]any{"requests": reqs}
	if _, err := c.retry.postJSON(ctx, c.httpClient, c.endpoint(model, "batchEmbedContents"), c.headers(), payload, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(out.Embeddings), len(inputs))
	}
	vectors := make([][]float32, len(out.Embeddings))
	for i, e := range out.Embeddings {
		vectors[i] = toFloat32(e.Values)
	}
	return vectors, nil
}
