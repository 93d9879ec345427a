package ai

import "context"

// Runtime is implemented by every text generation backend.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// ModelEmbedder is implemented by backends that expose an embeddings endpoint.
type ModelEmbedder interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// NormalizeProvider maps aliases onto a registered provider name.
func NormalizeProvider(name string) string {
	switch name {
	case "google", "gemini", "GEMINI", "Gemini":
		return ProviderGemini
	case "local", "ollama", "Ollama", "LOCAL":
		return ProviderOllama
	case "openrouter", "OpenRouter", "OPENROUTER", "openai", "anthropic", "meta", "llama":
		return ProviderOpenRouter
	}
	return name
}

// TextEmbedder embeds texts with a fixed model.
type TextEmbedder struct {
	Backend ModelEmbedder
	Model   string
}

func (e TextEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.Backend.Embed(ctx, e.Model, texts)
}
