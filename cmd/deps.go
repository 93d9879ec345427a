package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/KaramelBytes/estimate-insight/internal/ai"
	"github.com/KaramelBytes/estimate-insight/internal/analysis"
	"github.com/KaramelBytes/estimate-insight/internal/memory"
	"github.com/KaramelBytes/estimate-insight/internal/parser"
	"github.com/KaramelBytes/estimate-insight/internal/report"
	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

func runtimeConfig(provider string) ai.RuntimeConfig {
	rc := ai.RuntimeConfig{
		HTTPTimeout: cfg.HTTPTimeout(),
		RetryMax:    cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
		MaxDelay:    cfg.RetryMaxDelay(),
		APIKey:      cfg.KeyFor(provider),
	}
	if provider == ai.ProviderOllama {
		rc.Host = cfg.OllamaHost
		if cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = secs(cfg.OllamaTimeoutSec)
		}
	}
	return rc
}

// newNarrator resolves provider and model, falling back to config defaults.
func newNarrator(provider, model string) (*report.Narrator, error) {
	if provider == "" {
		provider = cfg.DefaultProvider
	}
	provider = ai.NormalizeProvider(provider)
	if model == "" {
		model = cfg.DefaultModel
	}
	rt, ok := ai.GetRuntime(provider, runtimeConfig(provider))
	if !ok {
		return nil, errors.New("unknown provider: " + provider + " (use gemini, openrouter or ollama)")
	}
	return &report.Narrator{
		Runtime: rt,
		Settings: report.Settings{
			Model:       model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			TopK:        cfg.TopK,
		},
		Logger: logger,
	}, nil
}

// newEmbedder returns nil when embeddings are turned off.
func newEmbedder() analysis.Embedder {
	p := strings.ToLower(strings.TrimSpace(cfg.EmbeddingProvider))
	if p == "" || p == "none" {
		return nil
	}
	p = ai.NormalizeProvider(p)
	emb, err := ai.GetEmbedder(p, cfg.EmbeddingModel, runtimeConfig(p))
	if err != nil {
		logger.Warn("embeddings disabled", "error", err.Error())
		return nil
	}
	return emb
}

func openStore(ctx context.Context) (memory.Store, error) {
	return memory.Open(ctx, memory.Options{
		Backend:           cfg.MemoryBackend,
		Dir:               cfg.MemoryDir,
		SQLitePath:        cfg.SQLitePath,
		FirestoreProject:  cfg.FirestoreProject,
		FirestoreDatabase: cfg.FirestoreDatabase,
	})
}

func newAnalyzer(store memory.Store, provider, model string) (*analysis.Analyzer, error) {
	n, err := newNarrator(provider, model)
	if err != nil {
		return nil, err
	}
	return &analysis.Analyzer{
		Narrator: n,
		Embedder: newEmbedder(),
		Store:    store,
		Logger:   logger,
	}, nil
}

// hint maps typed errors onto a one-line remedy.
func hint(err error) string {
	var (
		schema *variance.SchemaError
		auth   *ai.AuthError
	)
	switch {
	case errors.As(err, &schema):
		return "Headers need a category column (category, description, item, task, name) and an amount column (budget, estimate, actual, spent, amount, cost, ...)."
	case errors.Is(err, parser.ErrUnsupported):
		return "Supported formats: .xlsx, .csv, .tsv."
	case errors.Is(err, memory.ErrDisabled):
		return "Memory is disabled; set memory_backend to file, sqlite or firestore."
	case errors.Is(err, memory.ErrNotFound):
		return "Use 'estinsight insights list' to see stored insight IDs."
	case errors.As(err, &auth):
		return "Set GEMINI_API_KEY or OPENROUTER_API_KEY, or run 'estinsight config set gemini_api_key <key>'."
	}
	return ""
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
