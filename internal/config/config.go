package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains runtime configuration for the console.
type Config struct {
	API        APIConfig        `yaml:"api" mapstructure:"api"`
	ListView   ListViewConfig   `yaml:"listview" mapstructure:"listview"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	OpenSearch OpenSearchConfig `yaml:"opensearch" mapstructure:"opensearch"`
	NATS       NATSConfig       `yaml:"nats" mapstructure:"nats"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// APIConfig points at the admin API serving paginated lists.
type APIConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	Token          string `yaml:"token" mapstructure:"token"`
	TenantID       string `yaml:"tenant_id" mapstructure:"tenant_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// ListViewConfig tunes list views.
type ListViewConfig struct {
	DebounceMS      int   `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	DefaultPageSize int   `yaml:"default_page_size" mapstructure:"default_page_size"`
	PageSizes       []int `yaml:"page_sizes" mapstructure:"page_sizes"`
}

// Debounce returns the search debounce delay.
func (l ListViewConfig) Debounce() time.Duration {
	return time.Duration(l.DebounceMS) * time.Millisecond
}

// RedisConfig captures the saved-view store connection.
type RedisConfig struct {
	URL       string `yaml:"url" mapstructure:"url"`
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// OpenSearchConfig captures the log search backend.
type OpenSearchConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Insecure bool   `yaml:"insecure" mapstructure:"insecure"`
	Index    string `yaml:"index" mapstructure:"index"`
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
}

// NATSConfig captures the live log tail connection.
type NATSConfig struct {
	URL           string `yaml:"url" mapstructure:"url"`
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	Subject       string `yaml:"subject" mapstructure:"subject"`
	Buffer        int    `yaml:"buffer" mapstructure:"buffer"`
	MaxReconnects int    `yaml:"max_reconnects" mapstructure:"max_reconnects"`
	ReconnectWait int    `yaml:"reconnect_wait_seconds" mapstructure:"reconnect_wait_seconds"`
}

// ReconnectWaitDuration returns the reconnect wait as a time.Duration.
func (n NATSConfig) ReconnectWaitDuration() time.Duration {
	return time.Duration(n.ReconnectWait) * time.Second
}

// ServerConfig captures the demo backend's HTTP settings.
type ServerConfig struct {
	Port                int `yaml:"port" mapstructure:"port"`
	ReadTimeoutSeconds  int `yaml:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`
	IdleTimeoutSeconds  int `yaml:"idle_timeout_seconds" mapstructure:"idle_timeout_seconds"`
	MaxLimit            int `yaml:"max_limit" mapstructure:"max_limit"`
	Seed                int `yaml:"seed" mapstructure:"seed"`
}

// ReadTimeout returns the configured read timeout as a duration.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the configured write timeout as a duration.
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// IdleTimeout returns the configured idle timeout as a duration.
func (s ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSeconds) * time.Second
}

// LoggingConfig captures logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8090")
	v.SetDefault("api.token", "")
	v.SetDefault("api.tenant_id", "")
	v.SetDefault("api.timeout_seconds", 30)

	v.SetDefault("listview.debounce_ms", 500)
	v.SetDefault("listview.default_page_size", 10)
	v.SetDefault("listview.page_sizes", []int{10, 20, 30, 50, 100})

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.key_prefix", "console")

	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.password", "admin")
	v.SetDefault("opensearch.insecure", true)
	v.SetDefault("opensearch.index", "console-logs")
	v.SetDefault("opensearch.enabled", false)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.subject", "console.logs")
	v.SetDefault("nats.buffer", 1000)
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait_seconds", 2)

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("server.idle_timeout_seconds", 60)
	v.SetDefault("server.max_limit", 100)
	v.SetDefault("server.seed", 200)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
}

// Load reads configuration from the provided path and environment variables.
// A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.console")
		v.AddConfigPath("/etc/console")
	}

	v.SetEnvPrefix("CONSOLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.ListView.DebounceMS < 0 {
		return fmt.Errorf("listview.debounce_ms must not be negative, got %d", c.ListView.DebounceMS)
	}
	if len(c.ListView.PageSizes) == 0 {
		return errors.New("listview.page_sizes must not be empty")
	}
	found := false
	for _, size := range c.ListView.PageSizes {
		if size <= 0 {
			return fmt.Errorf("listview.page_sizes: %d is not positive", size)
		}
		if size == c.ListView.DefaultPageSize {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("listview.default_page_size %d is not in page_sizes", c.ListView.DefaultPageSize)
	}
	if c.NATS.Enabled && c.NATS.Buffer <= 0 {
		return fmt.Errorf("nats.buffer must be positive, got %d", c.NATS.Buffer)
	}
	return nil
}
