package config

import (
	"fmt"
	"strconv"
	"strings"
)

func (c *Global) fields() map[string]any {
	return map[string]any{
		"default_provider":    &c.DefaultProvider,
		"default_model":       &c.DefaultModel,
		"gemini_api_key":      &c.GeminiAPIKey,
		"api_key":             &c.APIKey,
		"embedding_provider":  &c.EmbeddingProvider,
		"embedding_model":     &c.EmbeddingModel,
		"max_tokens":          &c.MaxTokens,
		"temperature":         &c.Temperature,
		"top_p":               &c.TopP,
		"top_k":               &c.TopK,
		"http_timeout_sec":    &c.HTTPTimeoutSec,
		"retry_max_attempts":  &c.RetryMaxAttempts,
		"retry_base_delay_ms": &c.RetryBaseDelayMs,
		"retry_max_delay_ms":  &c.RetryMaxDelayMs,
		"ollama_host":         &c.OllamaHost,
		"ollama_timeout_sec":  &c.OllamaTimeoutSec,
		"memory_backend":      &c.MemoryBackend,
		"memory_dir":          &c.MemoryDir,
		"sqlite_path":         &c.SQLitePath,
		"firestore_project":   &c.FirestoreProject,
		"firestore_database":  &c.FirestoreDatabase,
		"server_addr":         &c.ServerAddr,
		"max_upload_mb":       &c.MaxUploadMB,
		"rate_limit_rps":      &c.RateLimitRPS,
		"rate_limit_burst":    &c.RateLimitBurst,
		"log_level":           &c.LogLevel,
		"log_format":          &c.LogFormat,
		"duplicate_policy":    &c.DuplicatePolicy,
		"strict_numbers":      &c.StrictNumbers,
	}
}

var allowed = map[string][]string{
	"default_provider":   {"gemini", "openrouter", "ollama"},
	"embedding_provider": {"gemini", "openrouter", "ollama", "none"},
	"memory_backend":     {"file", "sqlite", "firestore", "none"},
	"log_level":          {"debug", "info", "warn", "error"},
	"log_format":         {"text", "json"},
	"duplicate_policy":   {"sum", "last", "reject"},
}

// Set parses val for key and assigns it.
func (c *Global) Set(key, val string) error {
	f, ok := c.fields()[key]
	if !ok {
		return fmt.Errorf("unknown key: %s", key)
	}
	if opts, ok := allowed[key]; ok {
		val = strings.ToLower(strings.TrimSpace(val))
		if !contains(opts, val) {
			return fmt.Errorf("invalid %s: %s (use %s)", key, val, strings.Join(opts, ", "))
		}
	}
	switch p := f.(type) {
	case *string:
		*p = val
	case *int:
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*p = i
	case *float64:
		x, err := strconv.ParseFloat(val, 64)
		if err != nil || x < 0 {
			return fmt.Errorf("invalid float for %s: %v", key, val)
		}
		*p = x
	case *bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for %s: %v", key, val)
		}
		*p = b
	}
	return nil
}

// Get returns the printable value of key. Secrets are masked.
func (c *Global) Get(key string) (string, bool) {
	f, ok := c.fields()[key]
	if !ok {
		return "", false
	}
	var s string
	switch p := f.(type) {
	case *string:
		s = *p
	case *int:
		s = strconv.Itoa(*p)
	case *float64:
		s = strconv.FormatFloat(*p, 'f', -1, 64)
	case *bool:
		s = strconv.FormatBool(*p)
	}
	if strings.HasSuffix(key, "api_key") {
		s = Mask(s)
	}
	return s, true
}

// Mask hides all but the ends of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
