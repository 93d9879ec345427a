package ai

import (
	"fmt"
	"time"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) Runtime

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// APIKey is the provider key (Gemini or OpenRouter).
	APIKey string
	// Host is the Ollama base URL.
	Host string
	// BaseURL overrides the hosted endpoint (tests, proxies).
	BaseURL string
}

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// GetRuntime creates a Runtime for the given provider if registered.
func GetRuntime(name string, cfg RuntimeConfig) (Runtime, bool) {
	if f, ok := registry[NormalizeProvider(name)]; ok {
		return f(cfg), true
	}
	return nil, false
}

// GetEmbedder returns a fixed-model embedder for providers whose runtime
// also serves embeddings.
func GetEmbedder(name, model string, cfg RuntimeConfig) (TextEmbedder, error) {
	rt, ok := GetRuntime(name, cfg)
	if !ok {
		return TextEmbedder{}, fmt.Errorf("provider not supported: %s", name)
	}
	me, ok := rt.(ModelEmbedder)
	if !ok {
		return TextEmbedder{}, fmt.Errorf("provider %s does not serve embeddings", name)
	}
	return TextEmbedder{Backend: me, Model: model}, nil
}

func init() {
	RegisterRuntime(ProviderGemini, func(c RuntimeConfig) Runtime {
		return NewGeminiClientWithBaseURL(c.APIKey, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay, c.BaseURL)
	})
	RegisterRuntime(ProviderOpenRouter, func(c RuntimeConfig) Runtime {
		return NewClientWithBaseURL(c.APIKey, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay, c.BaseURL)
	})
	RegisterRuntime(ProviderOllama, func(c RuntimeConfig) Runtime {
		return NewOllamaClient(c.Host, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay)
	})
}
