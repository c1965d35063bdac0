package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: review.model is read from
// DOCREVISE_REVIEW_MODEL.
const EnvPrefix = "DOCREVISE"

// Manager loads the configuration and reloads it when the file changes.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// Load reads the configuration once.
func Load(cfgFile string) (*Config, error) {
	m, err := NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	return m.Get(), nil
}

// NewManager reads cfgFile, or docrevise.yaml from the working directory or
// $HOME/.docrevise when cfgFile is empty. A missing default file is not an
// error; a missing explicit file is.
func NewManager(cfgFile string) (*Manager, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("docrevise")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.docrevise")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	m := &Manager{v: v}
	cfg, err := m.load()
	if err != nil {
		return nil, err
	}
	m.config = cfg
	return m, nil
}

func (m *Manager) load() (*Config, error) {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// File is the config file in use, or "" when only defaults and the
// environment apply.
func (m *Manager) File() string {
	return m.v.ConfigFileUsed()
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnChange registers fn to run after every successful reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Watch reloads the configuration when its file changes. A reload that
// fails to parse or validate is logged and the previous configuration kept.
func (m *Manager) Watch(log *slog.Logger) {
	if m.File() == "" {
		log.Info("no config file to watch")
		return
	}
	m.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := m.load()
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			log.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}

		m.mu.Lock()
		m.config = cfg
		callbacks := make([]func(*Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.Unlock()

		log.Info("config reloaded", "file", e.Name, "mode", cfg.Review.Mode, "model", cfg.Review.Model)
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	m.v.WatchConfig()
}

// setDefaults registers every leaf of cfg so environment overrides apply to
// keys absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log.level", cfg.Log.Level)

	v.SetDefault("review.provider", cfg.Review.Provider)
	v.SetDefault("review.model", cfg.Review.Model)
	v.SetDefault("review.api_key", cfg.Review.APIKey)
	v.SetDefault("review.base_url", cfg.Review.BaseURL)
	v.SetDefault("review.max_tokens", cfg.Review.MaxTokens)
	v.SetDefault("review.mode", cfg.Review.Mode)
	v.SetDefault("review.modules", cfg.Review.Modules)
	v.SetDefault("review.per_module", cfg.Review.PerModule)
	v.SetDefault("review.workers", cfg.Review.Workers)
	v.SetDefault("review.call_interval", cfg.Review.CallInterval)
	v.SetDefault("review.call_timeout", cfg.Review.CallTimeout)
	v.SetDefault("review.min_confidence", cfg.Review.MinConfidence)
	v.SetDefault("review.stats_window", cfg.Review.StatsWindow)
	v.SetDefault("review.retry.attempts", cfg.Review.Retry.Attempts)
	v.SetDefault("review.retry.base_delay", cfg.Review.Retry.BaseDelay)
	v.SetDefault("review.retry.max_delay", cfg.Review.Retry.MaxDelay)
	v.SetDefault("review.retry.rate_limit_step", cfg.Review.Retry.RateLimitStep)
	v.SetDefault("review.retry.jitter", cfg.Review.Retry.Jitter)

	v.SetDefault("blocks.max_chars", cfg.Blocks.MaxChars)
	v.SetDefault("blocks.max_units", cfg.Blocks.MaxUnits)

	v.SetDefault("protect.rules", cfg.Protect.Rules)
	v.SetDefault("protect.max_backtrack", cfg.Protect.MaxBacktrack)
	v.SetDefault("protect.context_tracking", cfg.Protect.ContextTracking)
	v.SetDefault("protect.verse_heuristic", cfg.Protect.VerseHeuristic)

	v.SetDefault("apply.max_length_delta", cfg.Apply.MaxLengthDelta)
	v.SetDefault("apply.sanity_check", cfg.Apply.SanityCheck)

	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.api_key", cfg.Server.APIKey)
	v.SetDefault("server.workers", cfg.Server.Workers)
	v.SetDefault("server.queue_size", cfg.Server.QueueSize)
	v.SetDefault("server.job_ttl", cfg.Server.JobTTL)
	v.SetDefault("server.max_upload_bytes", cfg.Server.MaxUploadBytes)

	v.SetDefault("history.path", cfg.History.Path)
}

var keyComments = map[string]string{
	"log.level":              "debug, info, warn or error",
	"review.provider":        "openai or anthropic",
	"review.api_key":         "${VAR} references are expanded from the environment",
	"review.base_url":        "empty uses the provider's public endpoint",
	"review.mode":            "fast, conservador, balanceado or editorial",
	"review.modules":         "explicit prompt modules; overrides mode when not empty",
	"review.per_module":      "send each batch once per correction module",
	"review.call_interval":   "minimum wait between calls on one worker",
	"review.min_confidence":  "proposals reporting a lower confidence are dropped",
	"review.retry":           "retries for 429 and 5xx responses and call timeouts",
	"protect.rules":          "protection rules, evaluated in this order",
	"protect.max_backtrack":  "units above a source line that count as quoted",
	"apply.max_length_delta": "largest accepted change in length, in characters",
	"apply.sanity_check":     "revert units whose markup, URLs or length drift",
	"server.api_key":         "bearer token for the HTTP API",
	"history.path":           "SQLite database of revision runs",
}

// WriteDefault writes the default configuration, with comments, to path.
func WriteDefault(path string) error {
	data, err := DefaultYAML()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultYAML renders the default configuration as commented YAML.
func DefaultYAML() ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(Default()); err != nil {
		return nil, fmt.Errorf("encode default config: %w", err)
	}
	annotate(&node, "")
	node.HeadComment = "# docrevise configuration\n# Environment overrides use the " + EnvPrefix + "_ prefix, e.g. " + EnvPrefix + "_REVIEW_MODEL"

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("marshal default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// annotate attaches key comments by dotted path.
func annotate(n *yaml.Node, prefix string) {
	if n.Kind != yaml.MappingNode {
		for _, c := range n.Content {
			annotate(c, prefix)
		}
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		path := key.Value
		if prefix != "" {
			path = prefix + "." + key.Value
		}
		if c, ok := keyComments[path]; ok {
			key.HeadComment = "# " + c
		}
		annotate(val, path)
	}
}
