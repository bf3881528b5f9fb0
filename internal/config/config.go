package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultChannelURL   = "https://conda.anaconda.org/conda-forge"
	DefaultFetchTimeout = 5 * time.Minute
	DefaultOutputDir    = "."
	DefaultLogLevel     = "info"

	DefaultValidityFile     = "valid_licenses_data.json"
	DefaultSortedCountsFile = "sorted_license_counter.json"
	DefaultCountsFile       = "license_counter.json"
	DefaultMetricsFile      = "license_audit.prom"
)

// DefaultPlatforms is the compiled-in list of repository partitions audited
// when the config file does not name any.
var DefaultPlatforms = []string{"linux-64", "osx-64", "win-64", "osx-arm64", "noarch"}

// Config is the top-level audit configuration.
// Fields map 1:1 to licenseaudit.example.yaml.
type Config struct {
	// ChannelURL is the base URL of the package channel; platform snapshots
	// live at <channel_url>/<platform>/repodata.json[.zst].
	ChannelURL string `yaml:"channel_url"`

	// Platforms is the list of repository partitions to audit.
	Platforms []string `yaml:"platforms"`

	// Compressed selects the zstd snapshot. When false the uncompressed
	// sibling URL is fetched instead.
	Compressed bool `yaml:"compressed"`

	// FetchTimeout bounds fetch + decode of one platform snapshot.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// Workers bounds how many platforms are processed at once.
	// Zero means runtime.GOMAXPROCS(0).
	Workers int `yaml:"workers"`

	// OutputDir is where the result artifacts are written.
	OutputDir string `yaml:"output_dir"`

	// Outputs holds the artifact file names, relative to OutputDir.
	Outputs Outputs `yaml:"outputs"`

	// Auth configures how the loader authenticates to a private channel.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`
}

// Outputs names the artifacts written at the end of a run.
type Outputs struct {
	Validity     string `yaml:"validity"`
	SortedCounts string `yaml:"sorted_counts"`
	Counts       string `yaml:"counts"`

	// Metrics is the Prometheus textfile artifact. Empty disables it.
	Metrics string `yaml:"metrics"`
}

// AuthConfig specifies the authentication mode for the channel.
type AuthConfig struct {
	// Mode is one of: bearer | basic | none.
	Mode string `yaml:"mode"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username (safe to store in config).
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds TLS dial options for the channel.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal mirrors with self-signed certificates.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values map to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults; a missing file
// yields the defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config pre-populated with default values.
func Default() *Config {
	platforms := make([]string, len(DefaultPlatforms))
	copy(platforms, DefaultPlatforms)
	return &Config{
		ChannelURL:   DefaultChannelURL,
		Platforms:    platforms,
		Compressed:   true,
		FetchTimeout: DefaultFetchTimeout,
		OutputDir:    DefaultOutputDir,
		Outputs: Outputs{
			Validity:     DefaultValidityFile,
			SortedCounts: DefaultSortedCountsFile,
			Counts:       DefaultCountsFile,
			Metrics:      DefaultMetricsFile,
		},
		LogLevel: DefaultLogLevel,
	}
}

// Validate checks cfg after callers applied overrides (CLI flags).
func (c *Config) Validate() error {
	if err := validate(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.ChannelURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("channel_url %q must be an http(s) URL", cfg.ChannelURL)
	}
	if len(cfg.Platforms) == 0 {
		return fmt.Errorf("platforms must not be empty")
	}
	seen := make(map[string]struct{}, len(cfg.Platforms))
	for i, p := range cfg.Platforms {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("platforms[%d]: empty platform", i)
		}
		if strings.ContainsAny(p, "/?#") {
			return fmt.Errorf("platforms[%d]: %q is not a plain platform name", i, p)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("platforms[%d]: duplicate platform %q", i, p)
		}
		seen[p] = struct{}{}
	}
	if cfg.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive")
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if cfg.Outputs.Validity == "" || cfg.Outputs.SortedCounts == "" || cfg.Outputs.Counts == "" {
		return fmt.Errorf("outputs.validity, outputs.sorted_counts and outputs.counts are required")
	}
	switch cfg.Auth.Mode {
	case "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("auth: unknown mode %q", cfg.Auth.Mode)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: unknown level %q", cfg.LogLevel)
	}
	return nil
}
