package report

import (
	"context"
	"errors"
	"strings"

	"github.com/KaramelBytes/estimate-insight/internal/ai"
	"github.com/KaramelBytes/estimate-insight/internal/logging"
	"github.com/KaramelBytes/estimate-insight/internal/utils"
)

// Narrative sources.
const (
	SourceLLM      = "llm"
	SourceQuick    = "quick"
	SourceFallback = "fallback"
)

// Settings are the generation parameters sent with every narrative request.
type Settings struct {
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	TopK        int
}

// DefaultSettings favors consistent financial prose.
func DefaultSettings(model string) Settings {
	return Settings{Model: model, MaxTokens: 2048, Temperature: 0.3, TopP: 0.8, TopK: 40}
}

// Narrative is the generated (or fallback) prose for one analysis.
type Narrative struct {
	Text      string `json:"text"`
	Source    string `json:"source"`
	Model     string `json:"model,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// Narrator asks an LLM runtime for the narrative and falls back to the quick
// summary on any failure.
type Narrator struct {
	Runtime  ai.Runtime
	Settings Settings
	Logger   *logging.Logger
}

// Narrate never returns an error; failures surface as Source=fallback with a
// Warning.
func (n *Narrator) Narrate(ctx context.Context, in PromptInput, quick bool) Narrative {
	if quick {
		return Narrative{Text: QuickSummary(in.Summary), Source: SourceQuick}
	}
	if n == nil || n.Runtime == nil {
		return fallback(in, "no narrative provider configured; showing quick summary")
	}
	log := n.Logger
	if log == nil {
		log = logging.FromContext(ctx)
	}
	log = log.WithComponent(logging.ComponentNarrative)

	prompt := BuildPrompt(in)
	log.Debug("requesting narrative", logging.FieldModel, n.Settings.Model, "prompt_tokens_est", utils.EstimateTokens(prompt))
	resp, err := n.Runtime.Generate(ctx, ai.GenerateRequest{
		Model: n.Settings.Model,
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   n.Settings.MaxTokens,
		Temperature: n.Settings.Temperature,
		TopP:        n.Settings.TopP,
		TopK:        n.Settings.TopK,
	})
	if err != nil {
		log.Warn("narrative generation failed", logging.FieldModel, n.Settings.Model, logging.FieldError, err.Error())
		return fallback(in, "narrative generation failed: "+hint(err))
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		log.Warn("narrative generation returned no text", logging.FieldModel, n.Settings.Model)
		return fallback(in, "narrative provider returned no text")
	}
	log.Debug("narrative generated", logging.FieldModel, n.Settings.Model, "tokens", resp.Usage.TotalTokens)
	return Narrative{Text: text, Source: SourceLLM, Model: n.Settings.Model, RequestID: resp.RequestID}
}

func fallback(in PromptInput, warning string) Narrative {
	return Narrative{Text: QuickSummary(in.Summary), Source: SourceFallback, Warning: warning}
}

// hint turns typed provider errors into a short user-facing reason.
func hint(err error) string {
	var (
		auth  *ai.AuthError
		rl    *ai.RateLimitError
		quota *ai.QuotaExceededError
		model *ai.ModelNotFoundError
		down  *ai.UnreachableError
	)
	switch {
	case errors.As(err, &auth):
		return "authentication failed (check GEMINI_API_KEY / OPENROUTER_API_KEY)"
	case errors.As(err, &quota):
		return "provider quota exceeded"
	case errors.As(err, &rl):
		return "rate limited by provider"
	case errors.As(err, &model):
		return "model not found"
	case errors.As(err, &down):
		return "provider unreachable at " + down.Host
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	}
	return err.Error()
}
