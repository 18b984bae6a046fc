package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Window   WindowConfig   `mapstructure:"window"`
}

// ServerConfig defines listener ports and addresses
type ServerConfig struct {
	BindAddress    string `mapstructure:"bind_address"`
	APIEnabled     bool   `mapstructure:"api_enabled"`
	APIPort        int    `mapstructure:"api_port"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MetricsPort    int    `mapstructure:"metrics_port"`

	AllowedOrigins []string `mapstructure:"allowed_origins"` // CORS origins for browser front-ends
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt", "sqlite", "redis" or "memory"
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TrackingConfig defines session engine timing
type TrackingConfig struct {
	TickInterval  string `mapstructure:"tick_interval"`
	FlushInterval string `mapstructure:"flush_interval"`
	FocusTimeout  string `mapstructure:"focus_timeout"`
	RetentionDays int    `mapstructure:"retention_days"` // 0 keeps entries forever
	RetentionTime string `mapstructure:"retention_time"` // HH:MM local time of the daily prune
}

// WindowConfig selects how the focused and installed applications are discovered
type WindowConfig struct {
	Provider          string `mapstructure:"provider"` // "exec" or "static"
	FocusCommand      string `mapstructure:"focus_command"`
	RunningCommand    string `mapstructure:"running_command"`
	InstalledCommand  string `mapstructure:"installed_command"`
	InstalledCacheTTL string `mapstructure:"installed_cache_ttl"`
	StaticApp         string `mapstructure:"static_app"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("FLOWTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// DefaultConfigPath returns ~/.flowtrack/config.yaml, or a relative path when
// the home directory cannot be determined.
func DefaultConfigPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowtrack"
	}
	return filepath.Join(home, ".flowtrack")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.api_enabled", true)
	v.SetDefault("server.api_port", 7420)
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.metrics_port", 9420)
	v.SetDefault("server.allowed_origins", []string{})

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", filepath.Join(defaultDataDir(), "flowtrack.bolt"))
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "flowtrack")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Tracking defaults
	v.SetDefault("tracking.tick_interval", "1s")
	v.SetDefault("tracking.flush_interval", "1s")
	v.SetDefault("tracking.focus_timeout", "500ms")
	v.SetDefault("tracking.retention_days", 0)
	v.SetDefault("tracking.retention_time", "03:00")

	// Window defaults
	v.SetDefault("window.provider", "exec")
	v.SetDefault("window.focus_command", "xdotool getactivewindow getwindowclassname")
	v.SetDefault("window.running_command", "ps -eo pid=,comm=")
	v.SetDefault("window.installed_command", "ls /usr/share/applications")
	v.SetDefault("window.installed_cache_ttl", "10m")
	v.SetDefault("window.static_app", "")
}

// Defaults returns the configuration produced by defaults alone.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// UnknownKeys reads the file at configPath and returns the keys no setting
// uses, sorted.
func UnknownKeys(configPath string) ([]string, error) {
	file := viper.New()
	file.SetConfigFile(configPath)
	if err := file.ReadInConfig(); err != nil {
		return nil, err
	}

	defaults := viper.New()
	setDefaults(defaults)
	valid := make(map[string]bool)
	for _, key := range defaults.AllKeys() {
		valid[key] = true
	}

	var unknown []string
	for _, key := range file.AllKeys() {
		if !valid[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIEnabled && (cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535) {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsEnabled && (cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	tick, err := time.ParseDuration(cfg.Tracking.TickInterval)
	if err != nil {
		return fmt.Errorf("invalid tick_interval: %w", err)
	}
	if tick < time.Second || tick%time.Second != 0 {
		return fmt.Errorf("tick_interval must be a whole number of seconds, got %s", tick)
	}
	flush, err := time.ParseDuration(cfg.Tracking.FlushInterval)
	if err != nil {
		return fmt.Errorf("invalid flush_interval: %w", err)
	}
	if flush < tick {
		return fmt.Errorf("flush_interval (%s) must not be shorter than tick_interval (%s)", flush, tick)
	}
	if _, err := time.ParseDuration(cfg.Tracking.FocusTimeout); err != nil {
		return fmt.Errorf("invalid focus_timeout: %w", err)
	}
	if cfg.Tracking.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative")
	}
	if _, err := time.Parse("15:04", cfg.Tracking.RetentionTime); err != nil {
		return fmt.Errorf("invalid retention_time (expected HH:MM): %w", err)
	}

	switch cfg.Window.Provider {
	case "exec":
		if cfg.Window.FocusCommand == "" {
			return fmt.Errorf("window.focus_command is required for the exec provider")
		}
	case "static":
	default:
		return fmt.Errorf("unsupported window provider: %s", cfg.Window.Provider)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "bolt"
	}

	switch cfg.Storage.Type {
	case "bolt", "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	return nil
}

// ParseDuration parses a duration string with a fallback
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
