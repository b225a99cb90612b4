package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/shelfarr/booksearch/internal/logging"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. BOOKSEARCH_SERVER_LISTEN_ADDR
	EnvPrefix = "BOOKSEARCH"

	configName = "booksearch"
)

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// OpenLibraryConfig controls the search API client
type OpenLibraryConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// SearchConfig controls the live search sessions
type SearchConfig struct {
	Debounce   time.Duration `mapstructure:"debounce"`
	AllowStale bool          `mapstructure:"allow_stale"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ProbeConfig controls the background Open Library health probe
type ProbeConfig struct {
	// Interval between probes; 0 disables probing
	Interval time.Duration `mapstructure:"interval"`
}

// Config is the root of the configuration tree, matching booksearch.yaml
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	OpenLibrary OpenLibraryConfig `mapstructure:"openlibrary"`
	Search      SearchConfig      `mapstructure:"search"`
	Log         logging.Config    `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Probe       ProbeConfig       `mapstructure:"probe"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("openlibrary.base_url", "https://openlibrary.org")
	v.SetDefault("openlibrary.user_agent", "")
	v.SetDefault("openlibrary.timeout", 30*time.Second)
	v.SetDefault("openlibrary.requests_per_second", 0)

	v.SetDefault("search.debounce", 200*time.Millisecond)
	v.SetDefault("search.allow_stale", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "booksearch")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("probe.interval", 5*time.Minute)
}

// Load reads configuration from defaults, an optional yaml file and the
// environment, in increasing order of precedence.
//
// When file is empty, booksearch.yaml is looked up in the working directory
// and ./config; a missing file is not an error. An explicit file must exist.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the services cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr must not be empty"))
	}
	if u, err := url.Parse(c.OpenLibrary.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("openlibrary.base_url %q is not an absolute URL", c.OpenLibrary.BaseURL))
	}
	if c.OpenLibrary.Timeout < 0 {
		errs = append(errs, errors.New("openlibrary.timeout must not be negative"))
	}
	if c.OpenLibrary.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("openlibrary.requests_per_second must not be negative"))
	}
	if c.Search.Debounce < 0 {
		errs = append(errs, errors.New("search.debounce must not be negative"))
	}
	if c.Probe.Interval < 0 {
		errs = append(errs, errors.New("probe.interval must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
