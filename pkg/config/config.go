package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	AppName    = "Quick-Translator"
	ConfigName = "config.toml"
)

// Provider names accepted in [translation].provider and [pool].providers.
const (
	ProviderMyMemory = "mymemory"
	ProviderLLM      = "llm"
	ProviderPool     = "pool"
)

// Pool strategies accepted in [pool].strategy.
const (
	StrategyFallback = "fallback"
	StrategyRace     = "race"
)

// AppConfig represents the persistent application configuration.
type AppConfig struct {
	Translation TranslationConfig `toml:"translation" json:"translation"`
	MyMemory    MyMemoryConfig    `toml:"mymemory" json:"mymemory"`
	LLM         LLMConfig         `toml:"llm" json:"llm"`
	Pool        PoolConfig        `toml:"pool" json:"pool"`
	Cache       CacheConfig       `toml:"cache" json:"cache"`
	UI          UIConfig          `toml:"ui" json:"ui"`
	Remote      RemoteConfig      `toml:"remote" json:"remote"`
	Log         LogConfig         `toml:"log" json:"log"`
}

type TranslationConfig struct {
	Source         string `toml:"source" json:"source"`
	Target         string `toml:"target" json:"target"`
	Provider       string `toml:"provider" json:"provider"`
	TimeoutSeconds int    `toml:"timeout_seconds" json:"timeout_seconds"`
	Retries        int    `toml:"retries" json:"retries"`
	RetryDelayMS   int    `toml:"retry_delay_ms" json:"retry_delay_ms"`
	// SkipVerbatim answers texts made only of numbers, punctuation and
	// symbols locally instead of calling the provider.
	SkipVerbatim bool `toml:"skip_verbatim" json:"skip_verbatim"`
}

type MyMemoryConfig struct {
	BaseURL string `toml:"base_url" json:"base_url"`
	// Email raises the anonymous daily quota.
	Email string `toml:"email" json:"email"`
}

type LLMConfig struct {
	BaseURL string `toml:"base_url" json:"base_url"`
	APIKey  string `toml:"api_key" json:"api_key"`
	Model   string `toml:"model" json:"model"`
	Prompt  string `toml:"prompt" json:"prompt"`
}

type PoolConfig struct {
	Strategy  string   `toml:"strategy" json:"strategy"`
	Providers []string `toml:"providers" json:"providers"`
}

type CacheConfig struct {
	Enabled    bool `toml:"enabled" json:"enabled"`
	MaxEntries int  `toml:"max_entries" json:"max_entries"`
}

type UIConfig struct {
	// Language selects the interface catalog; empty means detect from the
	// environment.
	Language string `toml:"language" json:"language"`
	Width    int    `toml:"width" json:"width"`
	Height   int    `toml:"height" json:"height"`
	// Notify raises a desktop notification when a translation finishes
	// while the window is in the background.
	Notify bool `toml:"notify" json:"notify"`
}

type RemoteConfig struct {
	Listen         string   `toml:"listen" json:"listen"`
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`
}

type LogConfig struct {
	Level    string `toml:"level" json:"level"`
	MaxLines int    `toml:"max_lines" json:"max_lines"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Translation: TranslationConfig{
			Source:         "en",
			Target:         "zh",
			Provider:       ProviderMyMemory,
			TimeoutSeconds: 30,
			Retries:        0,
			RetryDelayMS:   2000,
		},
		MyMemory: MyMemoryConfig{
			BaseURL: "https://api.mymemory.translated.net",
			Email:   os.Getenv("MYMEMORY_EMAIL"),
		},
		LLM: LLMConfig{
			BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
			APIKey:  os.Getenv("DASHSCOPE_API_KEY"),
			Model:   "qwen-flash",
			Prompt:  "You are a professional translator. Translate the user's text from {source} to {target}. Reply with the translation only.",
		},
		Pool: PoolConfig{
			Strategy:  StrategyFallback,
			Providers: []string{ProviderMyMemory, ProviderLLM},
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 512,
		},
		UI: UIConfig{
			Width:  600,
			Height: 800,
			Notify: true,
		},
		Remote: RemoteConfig{
			Listen:         "127.0.0.1:8765",
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:    "info",
			MaxLines: 200,
		},
	}
}

// Timeout returns the per-request provider timeout.
func (c *AppConfig) Timeout() time.Duration {
	return time.Duration(c.Translation.TimeoutSeconds) * time.Second
}

// RetryDelay returns the pause between provider attempts.
func (c *AppConfig) RetryDelay() time.Duration {
	return time.Duration(c.Translation.RetryDelayMS) * time.Millisecond
}

// Validate reports every configuration problem at once.
func (c *AppConfig) Validate() error {
	var errs []error

	src := strings.TrimSpace(c.Translation.Source)
	dst := strings.TrimSpace(c.Translation.Target)
	if src == "" || dst == "" {
		errs = append(errs, errors.New("translation.source and translation.target are required"))
	} else if strings.EqualFold(src, dst) {
		errs = append(errs, fmt.Errorf("translation.source and translation.target must differ (both %q)", src))
	}

	if !knownProvider(c.Translation.Provider, true) {
		errs = append(errs, fmt.Errorf("unknown translation.provider %q", c.Translation.Provider))
	}
	if c.Translation.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("translation.timeout_seconds must not be negative"))
	}
	if c.Translation.Retries < 0 {
		errs = append(errs, errors.New("translation.retries must not be negative"))
	}

	if c.Translation.Provider == ProviderPool {
		switch c.Pool.Strategy {
		case StrategyFallback, StrategyRace:
		default:
			errs = append(errs, fmt.Errorf("unknown pool.strategy %q", c.Pool.Strategy))
		}
		if len(c.Pool.Providers) == 0 {
			errs = append(errs, errors.New("pool.providers must not be empty"))
		}
		for _, name := range c.Pool.Providers {
			if !knownProvider(name, false) {
				errs = append(errs, fmt.Errorf("unknown pool provider %q", name))
			}
		}
	}

	if c.Cache.Enabled && c.Cache.MaxEntries <= 0 {
		errs = append(errs, errors.New("cache.max_entries must be positive when the cache is enabled"))
	}

	return errors.Join(errs...)
}

func knownProvider(name string, allowPool bool) bool {
	switch name {
	case ProviderMyMemory, ProviderLLM:
		return true
	case ProviderPool:
		return allowPool
	}
	return false
}

// DefaultPath returns the full path to the configuration file under the
// user config directory, creating the directory if needed.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}

	appConfigDir := filepath.Join(configDir, AppName)
	if err := os.MkdirAll(appConfigDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}

	return filepath.Join(appConfigDir, ConfigName), nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultPath()
}

// Load reads the configuration from path, or from DefaultPath when path is
// empty. A missing file yields the default configuration. Fields absent from
// the file keep their default values.
func Load(path string) (*AppConfig, error) {
	path, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes TOML on top of the defaults.
func Parse(data []byte) (*AppConfig, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path, or to DefaultPath when path is empty.
func Save(path string, cfg *AppConfig) (string, error) {
	path, err := resolvePath(path)
	if err != nil {
		return "", err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}
	// 0600: the file may hold an API key
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}
