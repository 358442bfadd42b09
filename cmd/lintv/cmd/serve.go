package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lintv/lintv/internal/catalog"
	"github.com/lintv/lintv/internal/config"
	internalhttp "github.com/lintv/lintv/internal/http"
	"github.com/lintv/lintv/internal/http/handlers"
	"github.com/lintv/lintv/internal/playback"
	"github.com/lintv/lintv/internal/storage"
	"github.com/lintv/lintv/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lintv server",
	Long: `Start the lintv HTTP server.

The server provides:
- REST API for creating channels, enqueuing movies, and reading status
- Health check endpoint

Channel controllers are started lazily on first request (init, enqueue, or
status) and kept running until the process exits.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("data-dir", "./data", "Base directory for catalog and HLS output")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("storage.base_dir", serveCmd.Flags().Lookup("data-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// Flags given on the command line override file and environment values.
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Storage.BaseDir, _ = cmd.Flags().GetString("data-dir")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Playback.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone: %w", err)
	}

	sandbox, err := storage.NewSandbox(cfg.Storage.BaseDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	store, err := catalog.NewStore(sandbox, cfg.Storage.CatalogFile)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	playbackCfg := playback.Config{
		FFmpegPath:       cfg.FFmpeg.BinaryPath,
		ProbePath:        cfg.FFmpeg.ProbePath,
		AdFilePath:       cfg.Playback.AdFilePath,
		WatermarkText:    cfg.Playback.WatermarkText,
		SegmentSeconds:   int(cfg.Playback.SegmentDuration.Seconds()),
		WindowSize:       cfg.Playback.PlaylistWindow,
		ReadinessPoll:    cfg.Playback.SegmentDuration / 4,
		ReadinessTimeout: cfg.Playback.ReadinessTimeout,
		PreloadDeadline:  cfg.Playback.PreloadDeadline,
		AdStabilization:  cfg.Playback.AdStabilization,
		PreloadLeadTime:  cfg.Playback.PreloadLeadTime,
		ProbeTimeout:     cfg.Playback.ProbeTimeout,
		FallbackDuration: cfg.Playback.FallbackDuration,
		Location:         loc,
	}

	outputBase, err := sandbox.ResolvePath(cfg.Storage.OutputDir)
	if err != nil {
		return fmt.Errorf("resolving output directory: %w", err)
	}
	registry := playback.NewRegistry(store, outputBase, playbackCfg, logger)
	defer registry.Close()

	janitor := playback.NewJanitor(store, outputBase, logger)
	if err := janitor.Start("@every 5m"); err != nil {
		return fmt.Errorf("starting janitor: %w", err)
	}
	defer janitor.Stop()

	serverConfig := internalhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	server := internalhttp.NewServer(serverConfig, logger)

	healthHandler := handlers.NewHealthHandler(version.Short())
	healthHandler.Register(server.Router())

	channelHandler := handlers.NewChannelHandler(store, registry)
	channelHandler.Register(server.Router())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting lintv server",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("version", version.Short()),
	)

	return server.ListenAndServe(ctx)
}
