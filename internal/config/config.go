package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AppName is used for the config directory, the default output root and the env prefix
const AppName = "image-downloader"

// Config represents the entire application configuration
type Config struct {
	Download DownloadConfig `mapstructure:"download"`
	Output   OutputConfig   `mapstructure:"output"`
	Prompt   PromptConfig   `mapstructure:"prompt"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	History  HistoryConfig  `mapstructure:"history"`
}

// DownloadConfig contains fetch settings
type DownloadConfig struct {
	Workers   int      `mapstructure:"workers" validate:"min=1,max=64"`
	Timeout   string   `mapstructure:"timeout"`
	UserAgent string   `mapstructure:"user_agent"`
	MaxBytes  int64    `mapstructure:"max_bytes" validate:"min=0"`
	Blacklist []string `mapstructure:"blacklist" validate:"dive,url"` // Added to the built-in entries
}

// OutputConfig contains output directory settings
type OutputConfig struct {
	RootDir     string `mapstructure:"root_dir"`
	JPEGQuality int    `mapstructure:"jpeg_quality" validate:"min=1,max=100"`
	TempMaxAge  string `mapstructure:"temp_max_age"`
}

// PromptConfig contains file selection settings
type PromptConfig struct {
	AssumeYes bool `mapstructure:"assume_yes"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// HistoryConfig contains run history settings
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// flagKeys maps CLI flag names to configuration keys
var flagKeys = map[string]string{
	"workers": "download.workers",
	"output":  "output.root_dir",
	"yes":     "prompt.assume_yes",
	"history": "history.enabled",
}

// DefaultDir returns the per-user configuration directory of the application
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(dir, AppName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("download.workers", 8)
	v.SetDefault("download.timeout", "0s")
	v.SetDefault("download.user_agent", "")
	v.SetDefault("download.max_bytes", 0)
	v.SetDefault("download.blacklist", []string{})
	v.SetDefault("output.root_dir", "")
	v.SetDefault("output.jpeg_quality", 95)
	v.SetDefault("output.temp_max_age", "24h")
	v.SetDefault("prompt.assume_yes", false)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "text")
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "")
}

// Load loads configuration from defaults, an optional YAML file,
// IMAGE_DOWNLOADER_* environment variables and the given flags, in
// increasing order of precedence. When configPath is empty, config.yaml in
// DefaultDir is read if it exists. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultDir())
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine, an explicit one is not
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(AppName, "-", "_")))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Output.RootDir == "" {
		config.Output.RootDir = DefaultDir()
	}
	if config.History.Path == "" {
		config.History.Path = filepath.Join(config.Output.RootDir, "history.db")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if _, err := parseDuration(c.Download.Timeout); err != nil {
		return fmt.Errorf("invalid download.timeout: %w", err)
	}
	if d, err := parseDuration(c.Output.TempMaxAge); err != nil {
		return fmt.Errorf("invalid output.temp_max_age: %w", err)
	} else if d <= 0 {
		return fmt.Errorf("output.temp_max_age must be positive")
	}

	if c.Output.RootDir == "" {
		return fmt.Errorf("output.root_dir is required")
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}

	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

// LogLevel returns the configured level, info when unset. Verbose output
// raises notices to info and never lowers the level.
func (c *LoggingConfig) LogLevel() string {
	if c.Level != "" {
		return c.Level
	}
	return "info"
}

// GetTimeout returns the overall request timeout. Zero means no timeout.
func (c *DownloadConfig) GetTimeout() time.Duration {
	d, _ := parseDuration(c.Timeout)
	return d
}

// GetTempMaxAge returns the age after which leftover temp files are removed
func (c *OutputConfig) GetTempMaxAge() time.Duration {
	d, _ := parseDuration(c.TempMaxAge)
	if d == 0 {
		return 24 * time.Hour
	}
	return d
}
