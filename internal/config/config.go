// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// Commands depend on it so tests can hand them a prepared config.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Snapshot() SnapshotConfig
	Database() DatabaseConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserRemoteURL(string)

	// Snapshot Setters
	SetSnapshotPierceShadow(bool)
	SetSnapshotIncludePerFrame(bool)
	SetSnapshotOutputDir(string)
}

// Config holds the entire application configuration.
// It uses private fields to enforce access through the Interface's getter methods.
type Config struct {
	logger   LoggerConfig
	browser  BrowserConfig
	snapshot SnapshotConfig
	database DatabaseConfig
}

var _ Interface = (*Config)(nil)

// fileConfig is the decode target for viper. Its fields are exported so
// mapstructure can populate them.
type fileConfig struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.logger }
func (c *Config) Browser() BrowserConfig   { return c.browser }
func (c *Config) Snapshot() SnapshotConfig { return c.snapshot }
func (c *Config) Database() DatabaseConfig { return c.database }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)      { c.browser.Headless = b }
func (c *Config) SetBrowserRemoteURL(u string)   { c.browser.RemoteURL = u }
func (c *Config) SetSnapshotPierceShadow(b bool) { c.snapshot.PierceShadow = b }
func (c *Config) SetSnapshotIncludePerFrame(b bool) {
	c.snapshot.IncludePerFrame = b
}
func (c *Config) SetSnapshotOutputDir(dir string) { c.snapshot.OutputDir = dir }

// LoggerConfig defines the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance snapshots are taken from.
type BrowserConfig struct {
	Headless        bool `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Concurrency     int  `mapstructure:"concurrency" yaml:"concurrency"`
	// RemoteURL attaches to an already running browser (ws://host:port) instead
	// of launching one.
	RemoteURL         string         `mapstructure:"remote_url" yaml:"remote_url"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration  `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// SnapshotConfig tunes the capture pipeline.
type SnapshotConfig struct {
	PierceShadow    bool          `mapstructure:"pierce_shadow" yaml:"pierce_shadow"`
	IncludePerFrame bool          `mapstructure:"include_per_frame" yaml:"include_per_frame"`
	CallTimeout     time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
	MaxPruneDepth   int           `mapstructure:"max_prune_depth" yaml:"max_prune_depth"`
	OutputDir       string        `mapstructure:"output_dir" yaml:"output_dir"`
	WatchInterval   time.Duration `mapstructure:"watch_interval" yaml:"watch_interval"`
}

// DatabaseConfig holds the database connection details. An empty URL
// disables snapshot persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := decode(v)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "domsnap")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.concurrency", 4)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.post_load_wait", "500ms")

	// -- Snapshot --
	v.SetDefault("snapshot.pierce_shadow", true)
	v.SetDefault("snapshot.include_per_frame", false)
	v.SetDefault("snapshot.call_timeout", "30s")
	v.SetDefault("snapshot.max_prune_depth", 1024)
	v.SetDefault("snapshot.output_dir", "~/.domsnap/snapshots")
	v.SetDefault("snapshot.watch_interval", "10s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Connection strings often carry credentials; allow the conventional variable.
	_ = v.BindEnv("database.url", "DOMSNAP_DATABASE_URL", "DATABASE_URL")

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &Config{
		logger:   fc.Logger,
		browser:  fc.Browser,
		snapshot: fc.Snapshot,
		database: fc.Database,
	}, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.browser.Concurrency <= 0 {
		return fmt.Errorf("browser.concurrency must be a positive integer")
	}
	if c.browser.NavigationTimeout < 0 {
		return fmt.Errorf("browser.navigation_timeout must not be negative")
	}
	if c.snapshot.MaxPruneDepth <= 0 {
		return fmt.Errorf("snapshot.max_prune_depth must be a positive integer")
	}
	if c.snapshot.CallTimeout < 0 {
		return fmt.Errorf("snapshot.call_timeout must not be negative")
	}
	if c.snapshot.WatchInterval <= 0 {
		return fmt.Errorf("snapshot.watch_interval must be positive")
	}
	switch c.logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be \"console\" or \"json\", got %q", c.logger.Format)
	}
	return nil
}
