package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override the file.
const EnvPrefix = "TINKERDECK_"

// FileNames are the config files LoadFromDir looks for, in order.
var FileNames = []string{"tinkerdeck.yaml", "deck.yaml"}

// Config represents the tinkerdeck configuration
type Config struct {
	Title       string          `yaml:"title" koanf:"title"`
	Description string          `yaml:"description,omitempty" koanf:"description"`
	Server      ServerConfig    `yaml:"server" koanf:"server"`
	Deck        DeckConfig      `yaml:"deck" koanf:"deck"`
	Features    FeaturesConfig  `yaml:"features" koanf:"features"`
	Ignore      []string        `yaml:"ignore" koanf:"ignore"`
	RateLimit   RateLimitConfig `yaml:"rate_limit" koanf:"rate_limit"`
	CORS        CORSConfig      `yaml:"cors" koanf:"cors"`
	Journal     JournalConfig   `yaml:"journal" koanf:"journal"`
	Log         LogConfig       `yaml:"log" koanf:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port" koanf:"port"`
	Host  string `yaml:"host" koanf:"host"`
	Debug bool   `yaml:"debug" koanf:"debug"`
}

// DeckConfig selects the parts of a document the controller works on
type DeckConfig struct {
	SlideSelector    string  `yaml:"slide_selector" koanf:"slide_selector"`
	StepSelector     string  `yaml:"step_selector" koanf:"step_selector"`
	ProgressSelector string  `yaml:"progress_selector" koanf:"progress_selector"`
	KeysPerSecond    float64 `yaml:"keys_per_second,omitempty" koanf:"keys_per_second"` // Per-session key rate (default: 30)
	KeyBurst         int     `yaml:"key_burst,omitempty" koanf:"key_burst"`             // Per-session key burst (default: 10)
}

// FeaturesConfig holds feature flags
type FeaturesConfig struct {
	HotReload   bool `yaml:"hot_reload" koanf:"hot_reload"`
	Compression bool `yaml:"compression" koanf:"compression"`
}

// RateLimitConfig holds per-IP HTTP rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" koanf:"requests_per_second"` // default: 10
	Burst             int     `yaml:"burst,omitempty" koanf:"burst"`                             // default: 20
	MaxIPs            int     `yaml:"max_ips,omitempty" koanf:"max_ips"`                         // default: 10000
}

// CORSConfig holds CORS configuration for the API
type CORSConfig struct {
	Origins []string `yaml:"origins,omitempty" koanf:"origins"` // Allowed origins (e.g., ["http://localhost:3000", "*"])
}

// JournalConfig configures the navigation journal
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" koanf:"enabled"`
	Driver  string `yaml:"driver,omitempty" koanf:"driver"` // "sqlite" or "postgres"
	DSN     string `yaml:"dsn,omitempty" koanf:"dsn"`       // env vars expanded
	Buffer  int    `yaml:"buffer,omitempty" koanf:"buffer"` // queued entries before drops (default: 256)
}

// LogConfig configures logging
type LogConfig struct {
	Mode string `yaml:"mode" koanf:"mode"` // "dev" or "prod"
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title: "Tinkerdeck",
		Server: ServerConfig{
			Port:  8080,
			Host:  "localhost",
			Debug: false,
		},
		Deck: DeckConfig{
			SlideSelector:    "section",
			StepSelector:     ".md-step",
			ProgressSelector: "progress.deck-progress",
		},
		Features: FeaturesConfig{
			HotReload:   true,
			Compression: true,
		},
		Ignore: []string{
			"drafts/**",
			"node_modules/**",
		},
		Journal: JournalConfig{
			Driver: "sqlite",
			DSN:    "tinkerdeck.db",
		},
		Log: LogConfig{
			Mode: "dev",
		},
	}
}

// GetSlideSelector returns the slide selector (default: "section")
func (c *Config) GetSlideSelector() string {
	if c == nil || c.Deck.SlideSelector == "" {
		return "section"
	}
	return c.Deck.SlideSelector
}

// GetStepSelector returns the step selector (default: ".md-step")
func (c *Config) GetStepSelector() string {
	if c == nil || c.Deck.StepSelector == "" {
		return ".md-step"
	}
	return c.Deck.StepSelector
}

// GetProgressSelector returns the progress selector, empty when disabled
func (c *Config) GetProgressSelector() string {
	if c == nil {
		return ""
	}
	return c.Deck.ProgressSelector
}

// GetKeysPerSecond returns the per-session key rate (default: 30)
func (c *Config) GetKeysPerSecond() float64 {
	if c == nil || c.Deck.KeysPerSecond <= 0 {
		return 30
	}
	return c.Deck.KeysPerSecond
}

// GetKeyBurst returns the per-session key burst (default: 10)
func (c *Config) GetKeyBurst() int {
	if c == nil || c.Deck.KeyBurst <= 0 {
		return 10
	}
	return c.Deck.KeyBurst
}

// GetRateLimitRPS returns the rate limit in requests per second (default: 10)
func (c *Config) GetRateLimitRPS() float64 {
	if c == nil || c.RateLimit.RequestsPerSecond <= 0 {
		return 10
	}
	return c.RateLimit.RequestsPerSecond
}

// GetRateLimitBurst returns the burst size (default: 20)
func (c *Config) GetRateLimitBurst() int {
	if c == nil || c.RateLimit.Burst <= 0 {
		return 20
	}
	return c.RateLimit.Burst
}

// GetRateLimitMaxIPs returns the number of tracked client IPs (default: 10000)
func (c *Config) GetRateLimitMaxIPs() int {
	if c == nil || c.RateLimit.MaxIPs <= 0 {
		return 10000
	}
	return c.RateLimit.MaxIPs
}

// GetCORSOrigins returns the configured CORS origins, or nil if not configured
func (c *Config) GetCORSOrigins() []string {
	if c == nil {
		return nil
	}
	return c.CORS.Origins
}

// GetJournalDSN returns the journal DSN with environment variable expansion
func (c *Config) GetJournalDSN() string {
	if c == nil {
		return ""
	}
	return os.ExpandEnv(c.Journal.DSN)
}

// GetJournalBuffer returns the journal queue size (default: 256)
func (c *Config) GetJournalBuffer() int {
	if c == nil || c.Journal.Buffer <= 0 {
		return 256
	}
	return c.Journal.Buffer
}

// IsIgnored reports whether a slash-separated path relative to the deck root
// matches one of the ignore globs.
func (c *Config) IsIgnored(rel string) bool {
	if c == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range c.Ignore {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	switch c.Journal.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid journal.driver %q: must be sqlite or postgres", c.Journal.Driver)
	}
	if c.Journal.Enabled && c.Journal.DSN == "" {
		return fmt.Errorf("journal.dsn is required when the journal is enabled")
	}
	for _, pattern := range c.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}
	return nil
}

// sections are the top-level keys whose names contain underscores or that
// have nested keys; envKey uses them to split variable names.
var sections = []string{"rate_limit", "server", "deck", "features", "cors", "journal", "log"}

// envKey maps TINKERDECK_SERVER_PORT to server.port and
// TINKERDECK_RATE_LIMIT_BURST to rate_limit.burst.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	for _, s := range sections {
		if strings.HasPrefix(key, s+"_") {
			return s + "." + strings.TrimPrefix(key, s+"_")
		}
	}
	return key
}

// Load loads configuration from a YAML file, then overlays TINKERDECK_*
// environment variables. If the file doesn't exist, the defaults are used.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(k)
}

// LoadFS is LoadFromDir for a file system such as an embed.FS.
func LoadFS(fsys fs.FS) (*Config, error) {
	k := koanf.New(".")
	for _, name := range FileNames {
		data, err := fs.ReadFile(fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(bytesProvider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", name, err)
		}
		break
	}
	return decode(k)
}

// decode overlays the environment on k and decodes it over the defaults.
func decode(k *koanf.Koanf) (*Config, error) {
	config := DefaultConfig()

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env overrides: %w", err)
	}

	// Decoding merges into existing slices element by element.
	if k.Exists("ignore") {
		config.Ignore = nil
	}
	if k.Exists("cors.origins") {
		config.CORS.Origins = nil
	}

	if err := k.Unmarshal("", config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return config, nil
}

// bytesProvider is a koanf.Provider over an in-memory file.
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) { return b, nil }

func (b bytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("bytesProvider does not support Read()")
}

// LoadFromDir looks for tinkerdeck.yaml, then deck.yaml, in the given
// directory. If none is found, returns the default configuration.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Load("")
}

// Save writes the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
