package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/dgallion1/docrevise/internal/blocks"
	"github.com/dgallion1/docrevise/internal/pipeline"
	"github.com/dgallion1/docrevise/internal/protect"
	"github.com/dgallion1/docrevise/internal/review"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Review  ReviewConfig  `mapstructure:"review" yaml:"review"`
	Blocks  BlocksConfig  `mapstructure:"blocks" yaml:"blocks"`
	Protect ProtectConfig `mapstructure:"protect" yaml:"protect"`
	Apply   ApplyConfig   `mapstructure:"apply" yaml:"apply"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

type ReviewConfig struct {
	Provider      string        `mapstructure:"provider" yaml:"provider"`
	Model         string        `mapstructure:"model" yaml:"model"`
	APIKey        string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	MaxTokens     int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Mode          string        `mapstructure:"mode" yaml:"mode"`
	Modules       []string      `mapstructure:"modules" yaml:"modules"`
	PerModule     bool          `mapstructure:"per_module" yaml:"per_module"`
	Workers       int           `mapstructure:"workers" yaml:"workers"`
	CallInterval  time.Duration `mapstructure:"call_interval" yaml:"call_interval"`
	CallTimeout   time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
	MinConfidence float64       `mapstructure:"min_confidence" yaml:"min_confidence"`
	StatsWindow   time.Duration `mapstructure:"stats_window" yaml:"stats_window"`
	Retry         RetryPolicy   `mapstructure:"retry" yaml:"retry"`
}

// RetryPolicy is the configured form of review.RetryPolicy.
type RetryPolicy struct {
	Attempts      int           `mapstructure:"attempts" yaml:"attempts"`
	BaseDelay     time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	RateLimitStep time.Duration `mapstructure:"rate_limit_step" yaml:"rate_limit_step"`
	Jitter        bool          `mapstructure:"jitter" yaml:"jitter"`
}

type BlocksConfig struct {
	MaxChars int `mapstructure:"max_chars" yaml:"max_chars"`
	MaxUnits int `mapstructure:"max_units" yaml:"max_units"`
}

type ProtectConfig struct {
	Rules           []string `mapstructure:"rules" yaml:"rules"`
	MaxBacktrack    int      `mapstructure:"max_backtrack" yaml:"max_backtrack"`
	ContextTracking bool     `mapstructure:"context_tracking" yaml:"context_tracking"`
	VerseHeuristic  bool     `mapstructure:"verse_heuristic" yaml:"verse_heuristic"`
}

type ApplyConfig struct {
	MaxLengthDelta int  `mapstructure:"max_length_delta" yaml:"max_length_delta"`
	SanityCheck    bool `mapstructure:"sanity_check" yaml:"sanity_check"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port" yaml:"port"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	Workers        int           `mapstructure:"workers" yaml:"workers"`
	QueueSize      int           `mapstructure:"queue_size" yaml:"queue_size"`
	JobTTL         time.Duration `mapstructure:"job_ttl" yaml:"job_ttl"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
}

type HistoryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Default returns the configuration used for keys missing from every source.
func Default() *Config {
	rp := review.DefaultRetryPolicy()
	po := protect.DefaultOptions()
	lim := blocks.DefaultLimits()
	opts := pipeline.DefaultOptions()
	return &Config{
		Log: LogConfig{Level: "info"},
		Review: ReviewConfig{
			Provider:      ProviderOpenAI,
			Model:         "gpt-4.1",
			APIKey:        "${OPENAI_API_KEY}",
			MaxTokens:     10000,
			Mode:          "balanceado",
			Modules:       []string{},
			Workers:       opts.Workers,
			CallInterval:  opts.CallInterval,
			CallTimeout:   rp.CallTimeout,
			MinConfidence: 0.7,
			StatsWindow:   time.Hour,
			Retry: RetryPolicy{
				Attempts:      rp.Attempts,
				BaseDelay:     rp.BaseDelay,
				MaxDelay:      rp.MaxDelay,
				RateLimitStep: rp.RateLimitStep,
				Jitter:        rp.Jitter,
			},
		},
		Blocks: BlocksConfig{MaxChars: lim.MaxChars, MaxUnits: lim.MaxUnits},
		Protect: ProtectConfig{
			Rules:           protect.RuleIDs(),
			MaxBacktrack:    po.MaxBacktrack,
			ContextTracking: po.ContextTracking,
			VerseHeuristic:  po.VerseHeuristic,
		},
		Apply: ApplyConfig{MaxLengthDelta: opts.MaxLengthDelta, SanityCheck: opts.SanityCheck},
		Server: ServerConfig{
			Port:           "8090",
			APIKey:         "${DOCREVISE_API_KEY}",
			Workers:        2,
			QueueSize:      100,
			JobTTL:         time.Hour,
			MaxUploadBytes: 52428800, // 50MB
		},
		History: HistoryConfig{Path: "docrevise-history.db"},
	}
}

// Validate checks everything a revision run needs.
func (c *Config) Validate() error {
	switch c.Review.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("review.provider must be %q or %q, got %q", ProviderOpenAI, ProviderAnthropic, c.Review.Provider)
	}
	if c.Review.ResolvedAPIKey() == "" {
		return fmt.Errorf("review.api_key is required (got %q after expansion)", c.Review.APIKey)
	}
	if c.Review.Model == "" {
		return fmt.Errorf("review.model is required")
	}
	if c.Review.Workers < 1 {
		return fmt.Errorf("review.workers must be at least 1")
	}
	if c.Review.Retry.Attempts < 1 {
		return fmt.Errorf("review.retry.attempts must be at least 1")
	}
	if c.Review.MinConfidence < 0 || c.Review.MinConfidence > 1 {
		return fmt.Errorf("review.min_confidence must be between 0 and 1")
	}
	if c.Blocks.MaxChars < 1 || c.Blocks.MaxUnits < 1 {
		return fmt.Errorf("blocks.max_chars and blocks.max_units must be positive")
	}
	if c.Apply.MaxLengthDelta < 0 {
		return fmt.Errorf("apply.max_length_delta must not be negative")
	}
	if _, err := c.Review.Prompts(""); err != nil {
		return err
	}
	known := protect.RuleIDs()
	for _, id := range c.Protect.Rules {
		if !slices.Contains(known, id) {
			return fmt.Errorf("unknown protection rule %q (known: %s)", id, strings.Join(known, ", "))
		}
	}
	return nil
}

// ValidateServer checks the settings serve needs on top of Validate.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if ResolveEnvVars(c.Server.APIKey) == "" {
		return fmt.Errorf("server.api_key is required")
	}
	if c.Server.Workers < 1 || c.Server.QueueSize < 1 {
		return fmt.Errorf("server.workers and server.queue_size must be positive")
	}
	return nil
}

// ResolvedAPIKey expands ${VAR} references in the API key.
func (r ReviewConfig) ResolvedAPIKey() string {
	return ResolveEnvVars(r.APIKey)
}

// Prompts resolves the prompt modules for mode, or for the configured mode
// when mode is empty. An explicit module list wins over either.
func (r ReviewConfig) Prompts(mode string) (*review.PromptSet, error) {
	if mode == "" {
		mode = r.Mode
	}
	return review.NewPromptSet(mode, r.Modules)
}

func (r ReviewConfig) RetryPolicy() review.RetryPolicy {
	return review.RetryPolicy{
		Attempts:      r.Retry.Attempts,
		BaseDelay:     r.Retry.BaseDelay,
		MaxDelay:      r.Retry.MaxDelay,
		RateLimitStep: r.Retry.RateLimitStep,
		Jitter:        r.Retry.Jitter,
		CallTimeout:   r.CallTimeout,
	}
}

// NewProvider builds the configured review provider.
func (r ReviewConfig) NewProvider() (review.Provider, error) {
	switch r.Provider {
	case ProviderOpenAI:
		return review.NewOpenAIProvider(r.ResolvedAPIKey(), r.Model, r.BaseURL, r.MaxTokens), nil
	case ProviderAnthropic:
		return review.NewAnthropicProvider(r.ResolvedAPIKey(), r.Model, r.BaseURL, r.MaxTokens), nil
	}
	return nil, fmt.Errorf("unknown review provider %q", r.Provider)
}

// Classifier builds the protection classifier from the enabled rules.
func (p ProtectConfig) Classifier() (*protect.Classifier, error) {
	return protect.New(p.Rules, protect.Options{
		MaxBacktrack:    p.MaxBacktrack,
		ContextTracking: p.ContextTracking,
		VerseHeuristic:  p.VerseHeuristic,
	})
}

func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Limits:         blocks.Limits{MaxChars: c.Blocks.MaxChars, MaxUnits: c.Blocks.MaxUnits},
		Workers:        c.Review.Workers,
		CallInterval:   c.Review.CallInterval,
		PerModule:      c.Review.PerModule,
		MaxLengthDelta: c.Apply.MaxLengthDelta,
		SanityCheck:    c.Apply.SanityCheck,
	}
}

// Logger builds a logger at the configured level. JSON output is used by
// the server, text output by the CLI commands.
func (l LogConfig) Logger(w io.Writer, json bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

var envRefRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string. Unset variables
// expand to the empty string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRefRe.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}
