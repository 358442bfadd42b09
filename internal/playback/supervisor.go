package playback

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/lintv/lintv/internal/ffmpeg"
	"github.com/lintv/lintv/internal/models"
)

// Role distinguishes the ad filler from a queued movie when spawning a
// transcoder, since only the ad loops its input forever.
type Role int

const (
	RoleAd Role = iota
	RoleMovie
)

// SpawnRequest describes one transcoder spawn.
type SpawnRequest struct {
	InputPath     string
	OutputDir     string
	Slot          models.Slot
	Title         string
	Role          Role
	SegmentSecs   int
	WindowSize    int
	WatermarkText string
}

// Handle is a live transcoder process for one slot.
type Handle struct {
	Slot   models.Slot
	Title  string
	Role   Role
	cancel context.CancelFunc
	cmd    *ffmpeg.Command

	// done is closed exactly once, when the transcoder process exits, so
	// any number of goroutines can observe the exit via a select.
	done     chan struct{}
	exitCode int

	mu      sync.Mutex
	running bool
}

// Done returns a channel closed when the transcoder has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitCode returns the exit code recorded when the process terminated. It
// is only meaningful after Done() is closed.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// Kill hard-terminates the transcoder. Kills are immediate, never a graceful
// drain, since the output is rolling and disposable.
func (h *Handle) Kill() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return nil
	}
	h.running = false
	h.cancel()
	return h.cmd.Kill()
}

// IsRunning reports whether the transcoder process is still alive.
func (h *Handle) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running && h.cmd.IsRunning()
}

// Supervisor spawns and monitors transcoder child processes, one per slot,
// attaching the Readiness Detector and invoking caller callbacks at most
// once each on ready/exit.
type Supervisor struct {
	ffmpegPath string
	detector   *ReadinessDetector
}

// NewSupervisor builds a Supervisor that launches ffmpegPath and polls
// readiness with detector.
func NewSupervisor(ffmpegPath string, detector *ReadinessDetector) *Supervisor {
	return &Supervisor{ffmpegPath: ffmpegPath, detector: detector}
}

// Spawn launches a transcoder per req, calling onReady at most once when the
// Readiness Detector first observes a playable slot, and onExit exactly once
// when the child process terminates (exit code -1 reserved for spawn/input
// failure).
func (s *Supervisor) Spawn(ctx context.Context, req SpawnRequest, onReady func(), onExit func(code int)) (*Handle, error) {
	if _, err := os.Stat(req.InputPath); err != nil {
		go onExit(-1)
		return nil, fmt.Errorf("input missing: %w", err)
	}

	paths := SlotPaths{OutputDir: req.OutputDir, Slot: req.Slot}

	builder := ffmpeg.NewCommandBuilder(s.ffmpegPath).
		HideBanner().
		Overwrite().
		Stats().
		Input(req.InputPath)

	if req.Role == RoleAd {
		builder = builder.InputLoop()
	}
	if req.WatermarkText != "" {
		builder = builder.VideoFilter(drawtextFilter(req.WatermarkText))
	}

	builder = builder.HLSArgs(req.SegmentSecs, req.WindowSize, paths.SegmentPattern(), paths.MasterName()).
		Output(paths.StreamPlaylist())

	cmd := builder.Build()

	childCtx, cancel := context.WithCancel(ctx)
	if err := cmd.Start(childCtx); err != nil {
		cancel()
		go onExit(-1)
		return nil, fmt.Errorf("spawning transcoder: %w", err)
	}

	handle := &Handle{Slot: req.Slot, Title: req.Title, Role: req.Role, cancel: cancel, cmd: cmd, running: true, done: make(chan struct{})}

	readyCtx, cancelReady := context.WithCancel(childCtx)
	go func() {
		defer cancelReady()
		if err := s.detector.Wait(readyCtx, paths); err == nil {
			onReady()
		}
	}()

	go func() {
		code, _ := cmd.Wait()
		cancelReady()

		handle.mu.Lock()
		handle.running = false
		handle.exitCode = code
		handle.mu.Unlock()
		close(handle.done)

		onExit(code)
	}()

	return handle, nil
}

// drawtextFilter builds an ffmpeg drawtext filter burning text into the
// bottom-left corner of the video.
func drawtextFilter(text string) string {
	return fmt.Sprintf(`drawtext=text='%s':x=10:y=h-th-10:fontsize=18:fontcolor=white@0.8:box=1:boxcolor=black@0.4`, escapeDrawtext(text))
}

func escapeDrawtext(text string) string {
	replacer := func(r rune) rune {
		switch r {
		case '\'', ':', '\\':
			return '_'
		default:
			return r
		}
	}
	out := make([]rune, 0, len(text))
	for _, r := range text {
		out = append(out, replacer(r))
	}
	return string(out)
}
