package playback

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lintv/lintv/internal/catalog"
	"github.com/lintv/lintv/internal/ffmpeg"
	"github.com/lintv/lintv/internal/models"
	"github.com/lintv/lintv/pkg/bytesize"
	"github.com/lintv/lintv/pkg/duration"
)

// Config tunes one channel's playback engine. Every field has a matching
// entry under the playback section of the application config.
type Config struct {
	FFmpegPath       string
	ProbePath        string
	AdFilePath       string
	WatermarkText    string
	SegmentSeconds   int
	WindowSize       int
	ReadinessPoll    time.Duration
	ReadinessTimeout time.Duration
	PreloadDeadline  time.Duration
	AdStabilization  time.Duration
	PreloadLeadTime  time.Duration
	ProbeTimeout     time.Duration
	FallbackDuration time.Duration
	Location         *time.Location
}

// QueueItem is a read-only snapshot of one queued movie's position.
type QueueItem struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	AddedBy  string `json:"added_by"`
	Size     string `json:"size,omitempty"`
	Added    string `json:"added"`
}

// Status is a point-in-time snapshot of a channel's playback state, safe to
// read concurrently while the controller's loop goroutine keeps mutating its
// own runtime fields.
type Status struct {
	Name         string              `json:"name"`
	State        models.ChannelState `json:"state"`
	IsPlaying    bool                `json:"is_playing"`
	PlayingAd    bool                `json:"playing_ad"`
	PreloadReady bool                `json:"preload_ready"`
	CurrentTitle string              `json:"current_title,omitempty"`
	CurrentStart time.Time           `json:"current_started,omitempty"`
	QueueLength  int                 `json:"queue_length"`
	ActiveSlot   string              `json:"active_slot"`
}

// Controller owns one channel's state machine. A single goroutine (run)
// drains a mailbox of events, so every handler below executes without ever
// racing itself; the only state shared outside that goroutine is the
// mutex-guarded status snapshot.
type Controller struct {
	id        string
	name      string
	store     *catalog.Store
	outputDir string
	cfg       Config

	supervisor *Supervisor
	publisher  *Publisher
	projector  *ScheduleProjector
	logger     *slog.Logger

	mailbox chan event
	ctx     context.Context
	cancel  context.CancelFunc

	// The fields below belong to the loop goroutine alone.
	initialized   bool
	activeSlot    models.Slot
	nextSlot      models.Slot
	isPlaying     bool
	playingAd     bool
	isPreloading  bool
	preloadReady  bool
	currentHandle *Handle
	preloadHandle *Handle
	preloadMovie  *models.Movie
	state         models.ChannelState
	currentMovie  *models.Movie
	currentStart  time.Time
	queue         []models.Movie

	statusMu sync.RWMutex
	status   Status
}

// NewController builds a Controller for channel id, rooted at outputDir, and
// starts its event loop. Callers must call Close when the channel is torn
// down.
func NewController(id, name string, store *catalog.Store, outputDir string, cfg Config, logger *slog.Logger) *Controller {
	detector := NewReadinessDetector(cfg.ReadinessPoll, cfg.ReadinessTimeout)
	prober := ffmpeg.NewProber(cfg.ProbePath).WithTimeout(cfg.ProbeTimeout)

	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		id:         id,
		name:       name,
		store:      store,
		outputDir:  outputDir,
		cfg:        cfg,
		supervisor: NewSupervisor(cfg.FFmpegPath, detector),
		publisher:  NewPublisher(),
		projector:  NewScheduleProjector(prober, cfg.FallbackDuration, cfg.Location),
		logger:     logger.With("channel_id", id),
		mailbox:    make(chan event, 8),
		ctx:        ctx,
		cancel:     cancel,
		activeSlot: models.SlotA,
		nextSlot:   models.SlotB,
		state:      models.StateIdle,
	}

	go c.run()
	return c
}

// Close stops the event loop and kills any live transcoder for this channel.
func (c *Controller) Close() {
	c.cancel()
	if c.currentHandle != nil {
		_ = c.currentHandle.Kill()
	}
	if c.preloadHandle != nil {
		_ = c.preloadHandle.Kill()
	}
}

func (c *Controller) run() {
	for {
		select {
		case ev := <-c.mailbox:
			c.dispatch(ev)
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Controller) dispatch(ev event) {
	switch e := ev.(type) {
	case evInitialize:
		e.done <- c.handleInitialize()
	case evEnqueue:
		e.done <- c.handleEnqueue(e.movie)
	case evPlayAd:
		e.done <- c.handlePlayAd()
	case evPreloadNext:
		e.done <- c.handlePreloadNext()
	case evPlayNext:
		e.done <- c.handlePlayNext()
	case evExited:
		c.handleActiveExit(e.slot, e.code)
	}
}

// send posts ev to the mailbox and blocks for its result, or returns early
// if the controller has been closed.
func (c *Controller) send(ev event, done chan error) error {
	select {
	case c.mailbox <- ev:
	case <-c.ctx.Done():
		return fmt.Errorf("channel controller closed")
	}
	select {
	case err := <-done:
		return err
	case <-c.ctx.Done():
		return fmt.Errorf("channel controller closed")
	}
}

// InitializeChannel resets runtime state and starts the ad loop or first
// movie.
func (c *Controller) InitializeChannel() error {
	done := make(chan error, 1)
	return c.send(evInitialize{done: done}, done)
}

// EnqueueMovie appends a movie to the channel's queue, triggering an
// ad-loop-to-playing transition if the channel was previously idle on ads.
func (c *Controller) EnqueueMovie(m models.Movie) error {
	done := make(chan error, 1)
	return c.send(evEnqueue{movie: m, done: done}, done)
}

// PlayAd forces the channel onto the ad filler. It is exposed mainly for
// recovery paths and tests; normal operation reaches it via InitializeChannel
// or a drained queue.
func (c *Controller) PlayAd() error {
	done := make(chan error, 1)
	return c.send(evPlayAd{done: done}, done)
}

// PreloadNext prepares the next queued movie on the inactive slot without
// publishing it.
func (c *Controller) PreloadNext() error {
	done := make(chan error, 1)
	return c.send(evPreloadNext{done: done}, done)
}

// PlayNext promotes the preloaded (or freshly preloaded) movie to active.
func (c *Controller) PlayNext() error {
	done := make(chan error, 1)
	return c.send(evPlayNext{done: done}, done)
}

// Status returns a snapshot of the channel's current playback state.
func (c *Controller) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// QueueSnapshot returns a read-only, 1-indexed view of the queue. It is
// computed fresh from the catalog rather than the loop goroutine's queue
// field, since it is safe to read the catalog from any goroutine.
func (c *Controller) QueueSnapshot() []QueueItem {
	ch, ok := c.store.Get(c.id)
	if !ok {
		return nil
	}
	items := make([]QueueItem, 0, len(ch.Queue))
	for i, m := range ch.Queue {
		item := QueueItem{
			Position: i + 1,
			Title:    m.Title,
			AddedBy:  m.AddedBy,
			Added:    duration.FormatRelative(m.AddedAt),
		}
		if m.ByteSize > 0 {
			item.Size = bytesize.Format(bytesize.Size(m.ByteSize))
		}
		items = append(items, item)
	}
	return items
}

// Schedule returns the channel's last-projected schedule rows from the
// catalog.
func (c *Controller) Schedule() []models.ScheduleRow {
	ch, ok := c.store.Get(c.id)
	if !ok {
		return nil
	}
	return ch.Schedule
}

func (c *Controller) publishStatus() {
	st := Status{
		Name:         c.name,
		State:        c.state,
		IsPlaying:    c.isPlaying,
		PlayingAd:    c.playingAd,
		PreloadReady: c.preloadReady,
		QueueLength:  len(c.queue),
		ActiveSlot:   c.activeSlot.String(),
	}
	if c.currentMovie != nil {
		st.CurrentTitle = c.currentMovie.Title
		st.CurrentStart = c.currentStart
	}

	c.statusMu.Lock()
	c.status = st
	c.statusMu.Unlock()
}

// handleInitialize resets a channel's runtime to a clean slate and starts it
// playing, preferring the queue over the ad filler when non-empty.
func (c *Controller) handleInitialize() error {
	if c.initialized {
		return nil
	}

	if err := os.RemoveAll(c.outputDir); err != nil {
		return fmt.Errorf("clearing output directory: %w", err)
	}
	if err := os.MkdirAll(c.outputDir, 0750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	c.activeSlot = models.SlotA
	c.nextSlot = models.SlotB
	c.isPlaying = false
	c.playingAd = false
	c.isPreloading = false
	c.preloadReady = false
	c.currentHandle = nil
	c.preloadHandle = nil
	c.preloadMovie = nil
	c.currentMovie = nil
	c.state = models.StateIdle

	ch, ok := c.store.Get(c.id)
	if ok {
		c.queue = append([]models.Movie(nil), ch.Queue...)
	} else {
		c.queue = nil
	}

	c.initialized = true

	for len(c.queue) > 0 {
		if err := c.handlePreloadNext(); err != nil {
			// handlePreloadNext already dropped the offending head entry.
			c.logger.Warn("initial preload failed, trying next queue entry", "error", err)
			continue
		}
		return c.handlePlayNext()
	}
	return c.handlePlayAd()
}

// handlePlayAd spawns the looped ad filler on the active slot, retrying
// indefinitely on failure (the Open Question on ad-file-corruption recovery
// resolves to retry-forever with a 5s backoff; clean exits back off 1s since
// the ad is not expected to terminate on its own).
func (c *Controller) handlePlayAd() error {
	if c.playingAd {
		return nil
	}
	if len(c.queue) > 0 {
		return fmt.Errorf("cannot play ad: queue is not empty")
	}

	c.state = models.StateAdLoop

	for {
		req := SpawnRequest{
			InputPath:     c.cfg.AdFilePath,
			OutputDir:     c.outputDir,
			Slot:          c.activeSlot,
			Title:         "ad-loop",
			Role:          RoleAd,
			SegmentSecs:   c.cfg.SegmentSeconds,
			WindowSize:    c.cfg.WindowSize,
			WatermarkText: c.cfg.WatermarkText,
		}

		handle, readyCh, exitCh, err := c.spawnAndWatch(req)
		if err != nil {
			c.logger.Error("ad transcoder failed to spawn", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		select {
		case <-readyCh:
		case code := <-exitCh:
			c.logger.Warn("ad transcoder exited before becoming ready", "exit_code", code)
			if code == 0 {
				time.Sleep(1 * time.Second)
			} else {
				time.Sleep(5 * time.Second)
			}
			continue
		}

		// Stabilization delay: give the ad loop a moment of steady output
		// before publishing it.
		time.Sleep(c.cfg.AdStabilization)

		paths := SlotPaths{OutputDir: c.outputDir, Slot: c.activeSlot}
		if err := c.publisher.Publish(paths); err != nil {
			c.logger.Warn("ad publish failed, retrying", "error", err)
			_ = handle.Kill()
			time.Sleep(5 * time.Second)
			continue
		}

		c.currentHandle = handle
		c.isPlaying = true
		c.playingAd = true
		c.currentMovie = nil
		c.state = models.StateAdLoop
		go c.watchActive(handle)
		c.publishStatus()
		return nil
	}
}

// handleEnqueue appends movie to the queue, persists it, and -- if the
// channel was idling on the ad loop -- transitions straight into preloading
// and playing it.
func (c *Controller) handleEnqueue(movie models.Movie) error {
	if err := movie.Validate(); err != nil {
		return err
	}

	wasEmpty := len(c.queue) == 0
	c.queue = append(c.queue, movie)
	if err := c.persistQueueAndSchedule(); err != nil {
		return err
	}

	if wasEmpty && c.playingAd {
		c.state = models.StateTransitioning

		if c.currentHandle != nil {
			_ = c.currentHandle.Kill()
		}
		c.pruneSlot(c.activeSlot)
		c.isPlaying = false
		c.playingAd = false
		c.currentHandle = nil

		c.state = models.StatePreloading
		if err := c.handlePreloadNext(); err != nil {
			return err
		}
		return c.handlePlayNext()
	}

	c.publishStatus()
	return nil
}

// handlePreloadNext spawns the head-of-queue movie on the inactive slot
// without publishing it, so PlayNext can swap to it with no visible
// buffering.
func (c *Controller) handlePreloadNext() error {
	if c.isPreloading || c.preloadReady {
		return nil
	}
	if len(c.queue) == 0 {
		return fmt.Errorf("cannot preload: queue is empty")
	}

	movie := c.queue[0]
	c.isPreloading = true

	req := SpawnRequest{
		InputPath:   movie.FilePath,
		OutputDir:   c.outputDir,
		Slot:        c.nextSlot,
		Title:       movie.Title,
		Role:        RoleMovie,
		SegmentSecs: c.cfg.SegmentSeconds,
		WindowSize:  c.cfg.WindowSize,
	}

	handle, readyCh, exitCh, err := c.spawnAndWatch(req)
	if err != nil {
		c.isPreloading = false
		c.logger.Error("preload spawn failed", "title", movie.Title, "error", err)
		c.dropHead()
		return fmt.Errorf("preloading %q: %w", movie.Title, err)
	}

	deadline := time.NewTimer(c.cfg.PreloadDeadline)
	defer deadline.Stop()

	select {
	case <-readyCh:
	case code := <-exitCh:
		c.isPreloading = false
		c.logger.Error("preload exited before ready", "title", movie.Title, "exit_code", code)
		c.dropHead()
		return fmt.Errorf("preloading %q: exited with code %d before ready", movie.Title, code)
	case <-deadline.C:
		paths := SlotPaths{OutputDir: c.outputDir, Slot: c.nextSlot}
		if !checkReady(paths) {
			c.isPreloading = false
			_ = handle.Kill()
			c.logger.Error("preload deadline exceeded", "title", movie.Title)
			c.dropHead()
			return fmt.Errorf("preloading %q: %w", movie.Title, ErrReadinessTimeout)
		}
	}

	c.isPreloading = false
	c.preloadReady = true
	c.preloadHandle = handle
	c.preloadMovie = &movie
	return nil
}

// handlePlayNext promotes the preloaded movie to active. Movie metadata is
// captured into a local variable before the queue is shifted, so a failure
// partway through never leaves the controller unsure what it just promoted.
func (c *Controller) handlePlayNext() error {
	if len(c.queue) == 0 {
		return fmt.Errorf("cannot play next: queue is empty")
	}

	if !c.preloadReady {
		if err := c.handlePreloadNext(); err != nil {
			time.AfterFunc(5*time.Second, func() {
				done := make(chan error, 1)
				_ = c.send(evPlayNext{done: done}, done)
			})
			return err
		}
	}

	movie := *c.preloadMovie
	oldHandle := c.currentHandle
	wasAd := c.playingAd

	newSlot := c.nextSlot
	paths := SlotPaths{OutputDir: c.outputDir, Slot: newSlot}
	if err := c.publisher.Publish(paths); err != nil {
		return fmt.Errorf("publishing %q: %w", movie.Title, err)
	}

	c.activeSlot, c.nextSlot = newSlot, c.activeSlot
	c.currentHandle = c.preloadHandle
	c.preloadHandle = nil
	c.preloadReady = false
	c.preloadMovie = nil

	if wasAd && oldHandle != nil {
		_ = oldHandle.Kill()
	}

	c.currentMovie = &movie
	c.currentStart = time.Now()
	c.isPlaying = true
	c.playingAd = false
	c.state = models.StatePlaying

	c.dropHead()
	_ = c.persistQueueAndSchedule()

	go c.watchActive(c.currentHandle)

	if len(c.queue) > 0 {
		time.AfterFunc(c.cfg.PreloadLeadTime, func() {
			done := make(chan error, 1)
			_ = c.send(evPreloadNext{done: done}, done)
		})
	}

	c.publishStatus()
	return nil
}

// handleActiveExit reacts to the currently active slot's transcoder exiting,
// naturally (movie end) or by crash. Exits from a slot that is no longer
// current are stale and ignored.
func (c *Controller) handleActiveExit(slot models.Slot, code int) {
	if c.currentHandle == nil || c.currentHandle.Slot != slot {
		return
	}

	c.logger.Info("active transcoder exited", "slot", slot.String(), "exit_code", code, "was_ad", c.playingAd)

	c.isPlaying = false
	c.currentHandle = nil

	if c.playingAd {
		c.playingAd = false
		if err := c.handlePlayAd(); err != nil {
			c.logger.Error("failed to restart ad loop", "error", err)
		}
		return
	}

	if len(c.queue) == 0 {
		if err := c.handlePlayAd(); err != nil {
			c.logger.Error("failed to fall back to ad loop", "error", err)
		}
		return
	}

	// Brief suspension point before resuming the queue, so a crash-looping
	// source file cannot spin the controller hot.
	time.Sleep(2 * time.Second)
	if err := c.handlePlayNext(); err != nil {
		c.logger.Error("failed to play next after exit", "error", err)
	}
}

// watchActive blocks until handle exits and forwards the exit into the
// mailbox. It is the only path that feeds transcoder exits into the
// mailbox; preload and ad spawns are awaited synchronously by their own
// caller via spawnAndWatch instead.
func (c *Controller) watchActive(handle *Handle) {
	select {
	case <-handle.Done():
		select {
		case c.mailbox <- evExited{slot: handle.Slot, code: handle.ExitCode()}:
		case <-c.ctx.Done():
		}
	case <-c.ctx.Done():
	}
}

// spawnAndWatch spawns req and returns local, single-use channels fed
// directly by the supervisor's callbacks. Using per-call channels instead of
// the shared mailbox lets the calling handler block on readiness without
// deadlocking the loop goroutine it is running on.
func (c *Controller) spawnAndWatch(req SpawnRequest) (*Handle, <-chan struct{}, <-chan int, error) {
	readyCh := make(chan struct{}, 1)
	exitCh := make(chan int, 1)

	handle, err := c.supervisor.Spawn(c.ctx, req,
		func() {
			select {
			case readyCh <- struct{}{}:
			default:
			}
		},
		func(code int) {
			select {
			case exitCh <- code:
			default:
			}
		},
	)
	if err != nil {
		return nil, nil, nil, err
	}
	return handle, readyCh, exitCh, nil
}

// dropHead removes the head of the queue after it has been promoted or
// abandoned.
func (c *Controller) dropHead() {
	if len(c.queue) == 0 {
		return
	}
	c.queue = c.queue[1:]
}

// persistQueueAndSchedule writes the controller's in-memory queue back to
// the catalog and recomputes the schedule projection.
func (c *Controller) persistQueueAndSchedule() error {
	ch, ok := c.store.Get(c.id)
	if !ok {
		return fmt.Errorf("channel %s not found in catalog", c.id)
	}

	ch.Queue = append([]models.Movie(nil), c.queue...)
	ch.CurrentMovie = c.currentMovie
	ch.CurrentStarted = c.currentStart
	ch.Schedule = c.projector.Project(c.ctx, c.currentMovie, c.currentStart, c.queue)

	return c.store.Put(ch)
}

// pruneSlot removes a slot's playlists and segment files from the output
// directory, so a retired ad-loop slot does not linger on disk forever.
func (c *Controller) pruneSlot(slot models.Slot) {
	paths := SlotPaths{OutputDir: c.outputDir, Slot: slot}
	_ = os.Remove(paths.MasterPlaylist())
	_ = os.Remove(paths.StreamPlaylist())

	entries, err := os.ReadDir(c.outputDir)
	if err != nil {
		return
	}
	prefix := fmt.Sprintf("segment_%s_", slot.String())
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if len(entry.Name()) >= len(prefix) && entry.Name()[:len(prefix)] == prefix {
			_ = os.Remove(filepath.Join(c.outputDir, entry.Name()))
		}
	}
}
