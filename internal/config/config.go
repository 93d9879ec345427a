package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Providers and models
	DefaultProvider   string `mapstructure:"default_provider" yaml:"default_provider"`
	DefaultModel      string `mapstructure:"default_model" yaml:"default_model"`
	GeminiAPIKey      string `mapstructure:"gemini_api_key" yaml:"gemini_api_key,omitempty"`
	APIKey            string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	EmbeddingProvider string `mapstructure:"embedding_provider" yaml:"embedding_provider"`
	EmbeddingModel    string `mapstructure:"embedding_model" yaml:"embedding_model"`

	// Generation
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	TopP        float64 `mapstructure:"top_p" yaml:"top_p"`
	TopK        int     `mapstructure:"top_k" yaml:"top_k"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// Insight memory
	MemoryBackend     string `mapstructure:"memory_backend" yaml:"memory_backend"`
	MemoryDir         string `mapstructure:"memory_dir" yaml:"memory_dir"`
	SQLitePath        string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	FirestoreProject  string `mapstructure:"firestore_project" yaml:"firestore_project,omitempty"`
	FirestoreDatabase string `mapstructure:"firestore_database" yaml:"firestore_database"`

	// Server
	ServerAddr     string  `mapstructure:"server_addr" yaml:"server_addr"`
	MaxUploadMB    int     `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// Analysis
	DuplicatePolicy string `mapstructure:"duplicate_policy" yaml:"duplicate_policy"`
	StrictNumbers   bool   `mapstructure:"strict_numbers" yaml:"strict_numbers"`
}

// Keys lists every settable key, in file order.
var Keys = []string{
	"default_provider", "default_model", "gemini_api_key", "api_key",
	"embedding_provider", "embedding_model",
	"max_tokens", "temperature", "top_p", "top_k",
	"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
	"ollama_host", "ollama_timeout_sec",
	"memory_backend", "memory_dir", "sqlite_path", "firestore_project", "firestore_database",
	"server_addr", "max_upload_mb", "rate_limit_rps", "rate_limit_burst",
	"log_level", "log_format",
	"duplicate_policy", "strict_numbers",
}

// Dir returns ~/.estinsight.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".estinsight"), nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.estinsight/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_provider", "gemini")
	v.SetDefault("default_model", "gemini-2.5-flash")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("api_key", "")
	v.SetDefault("embedding_provider", "gemini")
	v.SetDefault("embedding_model", "text-embedding-004")
	v.SetDefault("max_tokens", 2048)
	v.SetDefault("temperature", 0.3)
	v.SetDefault("top_p", 0.8)
	v.SetDefault("top_k", 40)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 60)
	v.SetDefault("memory_backend", "file")
	v.SetDefault("memory_dir", "")
	v.SetDefault("sqlite_path", "")
	v.SetDefault("firestore_project", "")
	v.SetDefault("firestore_database", "(default)")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("max_upload_mb", 16)
	v.SetDefault("rate_limit_rps", 2.0)
	v.SetDefault("rate_limit_burst", 5)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("duplicate_policy", "sum")
	v.SetDefault("strict_numbers", false)
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("ESTINSIGHT")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.applyProviderEnv()
	if err := c.resolvePaths(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyProviderEnv fills provider keys from the conventional variables.
func (c *Global) applyProviderEnv() {
	if c.GeminiAPIKey == "" {
		for _, k := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
			if v := os.Getenv(k); v != "" {
				c.GeminiAPIKey = v
				break
			}
		}
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if c.FirestoreProject == "" {
		for _, k := range []string{"GCP_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"} {
			if v := os.Getenv(k); v != "" {
				c.FirestoreProject = v
				break
			}
		}
	}
}

func (c *Global) resolvePaths() error {
	if c.MemoryDir != "" && c.SQLitePath != "" {
		return nil
	}
	dir, err := Dir()
	if err != nil {
		return err
	}
	if c.MemoryDir == "" {
		c.MemoryDir = filepath.Join(dir, "memory")
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(dir, "insights.db")
	}
	return nil
}

// KeyFor returns the API key for provider, or "" for keyless providers.
func (c *Global) KeyFor(provider string) string {
	switch provider {
	case "gemini":
		return c.GeminiAPIKey
	case "openrouter":
		return c.APIKey
	}
	return ""
}

// HTTPTimeout returns the hosted-provider timeout.
func (c *Global) HTTPTimeout() time.Duration { return time.Duration(c.HTTPTimeoutSec) * time.Second }

// RetryBaseDelay returns the initial retry backoff.
func (c *Global) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay returns the backoff cap.
func (c *Global) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Global) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) << 20 }
