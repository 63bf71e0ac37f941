// Package config loads ragchat configuration and sets up logging.
//
// Values are layered: built-in defaults, then an optional YAML file, then a
// .env file, then RAGCHAT_* environment variables. Command-line flags are
// applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/ragchat"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Providers.
const (
	ProviderRAGAPI    = "ragapi"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

const envPrefix = "RAGCHAT_"

// Config holds all configuration values.
type Config struct {
	Provider    string `yaml:"provider"`
	SessionDir  string `yaml:"session_dir"`
	MetricsAddr string `yaml:"metrics_addr"`

	API       APIConfig       `yaml:"api"`
	Chat      ChatConfig      `yaml:"chat"`
	History   HistoryConfig   `yaml:"history"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Log       LogConfig       `yaml:"log"`
}

// APIConfig configures the chat backend client.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Token          string        `yaml:"token"`
	UserID         string        `yaml:"user_id"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateRPS        float64       `yaml:"rate_rps"`
	RateBurst      int           `yaml:"rate_burst"`
}

// ChatConfig holds the parameters sent with every query.
type ChatConfig struct {
	Template       string   `yaml:"template"`
	TopK           int      `yaml:"top_k"`
	IncludeHistory bool     `yaml:"include_history"`
	Language       string   `yaml:"language"`
	DocIDs         []string `yaml:"doc_ids"`
	Greeting       string   `yaml:"greeting"`
}

// HistoryConfig configures history retrieval and its cache.
type HistoryConfig struct {
	Limit    int           `yaml:"limit"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	CacheMax int           `yaml:"cache_size"`
}

// GeminiConfig configures the direct-model provider.
type GeminiConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// AnthropicConfig configures the Anthropic direct-model provider.
type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// LogConfig configures logging.
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	dir := homeDir()
	return Config{
		Provider:   ProviderRAGAPI,
		SessionDir: filepath.Join(dir, "sessions"),
		API: APIConfig{
			BaseURL:        "http://localhost:8000",
			IdleTimeout:    60 * time.Second,
			RequestTimeout: 30 * time.Second,
			RateBurst:      1,
		},
		Chat: ChatConfig{
			Template:       "default",
			TopK:           5,
			IncludeHistory: true,
			Language:       "auto",
			Greeting:       ragchat.DefaultGreeting,
		},
		History: HistoryConfig{
			Limit:    50,
			CacheTTL: 5 * time.Minute,
			CacheMax: 1000,
		},
		Gemini: GeminiConfig{
			Model:     "gemini-2.5-flash",
			MaxTokens: 8192,
		},
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
		},
		Log: LogConfig{
			File:  filepath.Join(dir, "ragchat.log"),
			Level: "INFO",
		},
	}
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(homeDir(), "config.yaml")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ragchat"
	}
	return filepath.Join(home, ".ragchat")
}

// Load builds the configuration from defaults, the YAML file at path, a .env
// file in the working directory and the process environment. An empty path
// means DefaultPath; a missing file there is not an error. The result is
// validated.
func Load(path string) (Config, error) {
	return load(path, ".env", os.LookupEnv)
}

func load(path, envFile string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	// .env values apply only where the real environment is silent.
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: read %s: %w", envFile, err)
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.mergeEnv(env); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(env func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := env(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	parse := func(key string, set func(string) error) {
		if v, ok := env(envPrefix + key); ok && v != "" {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", envPrefix, key, err))
			}
		}
	}
	intVar := func(dst *int) func(string) error {
		return func(v string) (err error) { *dst, err = strconv.Atoi(v); return err }
	}
	durVar := func(dst *time.Duration) func(string) error {
		return func(v string) (err error) { *dst, err = time.ParseDuration(v); return err }
	}

	str("PROVIDER", &c.Provider)
	str("SESSION_DIR", &c.SessionDir)
	str("METRICS_ADDR", &c.MetricsAddr)

	str("BASE_URL", &c.API.BaseURL)
	str("TOKEN", &c.API.Token)
	str("USER_ID", &c.API.UserID)
	parse("IDLE_TIMEOUT", durVar(&c.API.IdleTimeout))
	parse("REQUEST_TIMEOUT", durVar(&c.API.RequestTimeout))
	parse("RATE_RPS", func(v string) (err error) { c.API.RateRPS, err = strconv.ParseFloat(v, 64); return err })
	parse("RATE_BURST", intVar(&c.API.RateBurst))

	str("TEMPLATE", &c.Chat.Template)
	parse("TOP_K", intVar(&c.Chat.TopK))
	parse("INCLUDE_HISTORY", func(v string) (err error) { c.Chat.IncludeHistory, err = strconv.ParseBool(v); return err })
	str("LANGUAGE", &c.Chat.Language)
	parse("DOC_IDS", func(v string) error { c.Chat.DocIDs = splitList(v); return nil })
	str("GREETING", &c.Chat.Greeting)

	parse("HISTORY_LIMIT", intVar(&c.History.Limit))
	parse("HISTORY_CACHE_TTL", durVar(&c.History.CacheTTL))
	parse("HISTORY_CACHE_SIZE", intVar(&c.History.CacheMax))

	// The vendors' conventional variables are honored as fallbacks.
	if v, ok := env("GEMINI_API_KEY"); ok && v != "" {
		c.Gemini.APIKey = v
	}
	str("GEMINI_API_KEY", &c.Gemini.APIKey)
	str("GEMINI_MODEL", &c.Gemini.Model)
	parse("GEMINI_MAX_TOKENS", intVar(&c.Gemini.MaxTokens))
	if v, ok := env("ANTHROPIC_API_KEY"); ok && v != "" {
		c.Anthropic.APIKey = v
	}
	str("ANTHROPIC_API_KEY", &c.Anthropic.APIKey)
	str("ANTHROPIC_MODEL", &c.Anthropic.Model)
	parse("ANTHROPIC_MAX_TOKENS", intVar(&c.Anthropic.MaxTokens))

	str("LOG_FILE", &c.Log.File)
	str("LOG_LEVEL", &c.Log.Level)

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderRAGAPI:
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("config: invalid base URL %q", c.API.BaseURL))
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			errs = append(errs, errors.New("config: gemini provider requires an API key (GEMINI_API_KEY)"))
		}
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			errs = append(errs, errors.New("config: anthropic provider requires an API key (ANTHROPIC_API_KEY)"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown provider %q (want %s, %s or %s)",
			c.Provider, ProviderRAGAPI, ProviderGemini, ProviderAnthropic))
	}
	if c.API.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: idle timeout must not be negative, got %s", c.API.IdleTimeout))
	}
	// Query parameters are checked with a placeholder query.
	req := c.RequestDefaults()
	req.Query = "-"
	if err := req.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RequestDefaults returns the parameters sent with every query.
func (c Config) RequestDefaults() ragchat.Request {
	return ragchat.Request{
		UserID:         c.API.UserID,
		DocIDs:         c.Chat.DocIDs,
		Template:       c.Chat.Template,
		TopK:           c.Chat.TopK,
		IncludeHistory: c.Chat.IncludeHistory,
		Language:       c.Chat.Language,
	}
}

// Identity returns the identity that authenticates backend requests.
func (c Config) Identity() ragchat.StaticIdentity {
	return ragchat.StaticIdentity{BearerToken: c.API.Token}
}

// LogLevel returns the configured level, defaulting to INFO.
func (c Config) LogLevel() slog.Level {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel parses DEBUG, INFO, WARN (or WARNING) and ERROR,
// case-insensitively. An empty string is INFO.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
	}
}
