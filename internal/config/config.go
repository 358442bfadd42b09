// Package config provides configuration management for lintv using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultSegmentDuration  = 2 * time.Second
	defaultPlaylistWindow   = 6
	defaultProbeTimeout     = 10 * time.Second
	defaultFallbackDuration = 90 * time.Minute
	defaultReadinessTimeout = 20 * time.Second
	defaultPreloadDeadline  = 25 * time.Second
	defaultAdStabilization  = 3 * time.Second
	defaultPreloadLeadTime  = 10 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	FFmpeg   FFmpegConfig   `mapstructure:"ffmpeg"`
	Playback PlaybackConfig `mapstructure:"playback"`
}

// ServerConfig holds HTTP server configuration for the channel status API.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	BaseDir     string `mapstructure:"base_dir"`
	OutputDir   string `mapstructure:"output_dir"`   // relative to BaseDir; holds hls_output/<channelId>/
	CatalogFile string `mapstructure:"catalog_file"` // relative to BaseDir; the channels.json catalog
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`  // debug, info, warn, error
	Format         string `mapstructure:"format"` // json, text
	AddSource      bool   `mapstructure:"add_source"`
	TimeFormat     string `mapstructure:"time_format"`
	RequestLogging bool   `mapstructure:"request_logging"` // log each HTTP request at info level
}

// FFmpegConfig holds ffmpeg/ffprobe binary configuration.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // path to ffmpeg binary
	ProbePath  string `mapstructure:"probe_path"`  // path to ffprobe binary
}

// PlaybackConfig holds tuning for the per-channel playback engine:
// segmenting, readiness, and transition timings.
type PlaybackConfig struct {
	SegmentDuration  time.Duration `mapstructure:"segment_duration"`  // target HLS segment length
	PlaylistWindow   int           `mapstructure:"playlist_window"`   // rolling segment count per slot
	ReadinessTimeout time.Duration `mapstructure:"readiness_timeout"` // detector deadline
	PreloadDeadline  time.Duration `mapstructure:"preload_deadline"`  // overall PreloadNext deadline
	AdStabilization  time.Duration `mapstructure:"ad_stabilization"`  // delay after ad readiness before publish
	PreloadLeadTime  time.Duration `mapstructure:"preload_lead_time"` // delay after movie start before preloading next
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`     // duration probe timeout per file
	FallbackDuration time.Duration `mapstructure:"fallback_duration"` // schedule duration used when probing fails
	AdFilePath       string        `mapstructure:"ad_file_path"`      // looped filler media
	WatermarkText    string        `mapstructure:"watermark_text"`    // channel-wide watermark burned into ads
	Timezone         string        `mapstructure:"timezone"`          // schedule display timezone (WAT)
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with LINTV_ and use underscores for nesting.
// Example: LINTV_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/lintv")
		v.AddConfigPath("$HOME/.lintv")
	}

	v.SetEnvPrefix("LINTV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.output_dir", "hls_output")
	v.SetDefault("storage.catalog_file", "channels.json")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
	v.SetDefault("logging.request_logging", true)

	v.SetDefault("ffmpeg.binary_path", "ffmpeg")
	v.SetDefault("ffmpeg.probe_path", "ffprobe")

	v.SetDefault("playback.segment_duration", defaultSegmentDuration)
	v.SetDefault("playback.playlist_window", defaultPlaylistWindow)
	v.SetDefault("playback.readiness_timeout", defaultReadinessTimeout)
	v.SetDefault("playback.preload_deadline", defaultPreloadDeadline)
	v.SetDefault("playback.ad_stabilization", defaultAdStabilization)
	v.SetDefault("playback.preload_lead_time", defaultPreloadLeadTime)
	v.SetDefault("playback.probe_timeout", defaultProbeTimeout)
	v.SetDefault("playback.fallback_duration", defaultFallbackDuration)
	v.SetDefault("playback.ad_file_path", "")
	v.SetDefault("playback.watermark_text", "")
	v.SetDefault("playback.timezone", "Africa/Lagos")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Storage.OutputDir == "" {
		return fmt.Errorf("storage.output_dir is required")
	}
	if c.Storage.CatalogFile == "" {
		return fmt.Errorf("storage.catalog_file is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Playback.PlaylistWindow < 2 {
		return fmt.Errorf("playback.playlist_window must be at least 2")
	}
	if c.Playback.SegmentDuration <= 0 {
		return fmt.Errorf("playback.segment_duration must be positive")
	}
	if _, err := time.LoadLocation(c.Playback.Timezone); err != nil {
		return fmt.Errorf("playback.timezone is invalid: %w", err)
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OutputPath returns the full path to the HLS output directory.
func (c *StorageConfig) OutputPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.OutputDir)
}

// CatalogPath returns the full path to the persisted channel catalog.
func (c *StorageConfig) CatalogPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.CatalogFile)
}
