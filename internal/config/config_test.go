package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "./data", cfg.Storage.BaseDir)
	assert.Equal(t, "hls_output", cfg.Storage.OutputDir)
	assert.Equal(t, "channels.json", cfg.Storage.CatalogFile)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Logging.AddSource)

	assert.Equal(t, "ffmpeg", cfg.FFmpeg.BinaryPath)
	assert.Equal(t, "ffprobe", cfg.FFmpeg.ProbePath)

	assert.Equal(t, 2*time.Second, cfg.Playback.SegmentDuration)
	assert.Equal(t, 6, cfg.Playback.PlaylistWindow)
	assert.Equal(t, 20*time.Second, cfg.Playback.ReadinessTimeout)
	assert.Equal(t, 25*time.Second, cfg.Playback.PreloadDeadline)
	assert.Equal(t, 3*time.Second, cfg.Playback.AdStabilization)
	assert.Equal(t, 10*time.Second, cfg.Playback.PreloadLeadTime)
	assert.Equal(t, 10*time.Second, cfg.Playback.ProbeTimeout)
	assert.Equal(t, 90*time.Minute, cfg.Playback.FallbackDuration)
	assert.Equal(t, "Africa/Lagos", cfg.Playback.Timezone)
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  host: 127.0.0.1
  port: 9090

storage:
  base_dir: /var/lib/lintv

playback:
  segment_duration: 4s
  playlist_window: 8
  watermark_text: "LINTV"
  timezone: UTC
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/lintv", cfg.Storage.BaseDir)
	assert.Equal(t, 4*time.Second, cfg.Playback.SegmentDuration)
	assert.Equal(t, 8, cfg.Playback.PlaylistWindow)
	assert.Equal(t, "LINTV", cfg.Playback.WatermarkText)
	assert.Equal(t, "UTC", cfg.Playback.Timezone)

	// Values not present in the file keep their defaults.
	assert.Equal(t, "channels.json", cfg.Storage.CatalogFile)
	assert.Equal(t, "ffmpeg", cfg.FFmpeg.BinaryPath)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("LINTV_SERVER_PORT", "7000")
	t.Setenv("LINTV_PLAYBACK_WATERMARK_TEXT", "env-watermark")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "env-watermark", cfg.Playback.WatermarkText)
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("not: valid: yaml: ["), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	base := func(t *testing.T) *Config {
		t.Helper()
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("valid defaults pass", func(t *testing.T) {
		assert.NoError(t, base(t).Validate())
	})

	t.Run("invalid port", func(t *testing.T) {
		cfg := base(t)
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing base dir", func(t *testing.T) {
		cfg := base(t)
		cfg.Storage.BaseDir = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := base(t)
		cfg.Logging.Level = "verbose"
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid log format", func(t *testing.T) {
		cfg := base(t)
		cfg.Logging.Format = "xml"
		assert.Error(t, cfg.Validate())
	})

	t.Run("playlist window too small", func(t *testing.T) {
		cfg := base(t)
		cfg.Playback.PlaylistWindow = 1
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive segment duration", func(t *testing.T) {
		cfg := base(t)
		cfg.Playback.SegmentDuration = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid timezone", func(t *testing.T) {
		cfg := base(t)
		cfg.Playback.Timezone = "Nowhere/Imaginary"
		assert.Error(t, cfg.Validate())
	})
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestStorageConfig_Paths(t *testing.T) {
	cfg := StorageConfig{BaseDir: "/data", OutputDir: "hls_output", CatalogFile: "channels.json"}
	assert.Equal(t, "/data/hls_output", cfg.OutputPath())
	assert.Equal(t, "/data/channels.json", cfg.CatalogPath())
}
