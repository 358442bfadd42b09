package playback

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"

	"github.com/lintv/lintv/internal/catalog"
	"github.com/lintv/lintv/internal/observability"
)

// Janitor periodically sweeps a channel's output base directory for
// subdirectories that no longer correspond to a catalog entry -- left
// behind, for instance, by a channel deleted out-of-band of a controller
// restart. It never touches a directory for a channel still in the catalog;
// slot-level segment cleanup after a transition is the controller's own job
// (see Controller.pruneSlot).
type Janitor struct {
	store      *catalog.Store
	outputBase string
	logger     *slog.Logger
	cron       *cron.Cron
}

// NewJanitor creates a Janitor that has not yet been started.
func NewJanitor(store *catalog.Store, outputBase string, logger *slog.Logger) *Janitor {
	return &Janitor{
		store:      store,
		outputBase: outputBase,
		logger:     logger,
		cron:       cron.New(),
	}
}

// Start schedules the sweep on the given cron spec (e.g. "@every 5m") and
// begins running it in the background.
func (j *Janitor) Start(spec string) error {
	_, err := j.cron.AddFunc(spec, j.sweep)
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the schedule, waiting for any in-flight sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Janitor) sweep() {
	done := observability.TimedOperation(context.Background(), j.logger, "janitor_sweep")
	defer done()

	known := make(map[string]struct{})
	for _, ch := range j.store.All() {
		known[ch.ID.String()] = struct{}{}
	}

	entries, err := os.ReadDir(j.outputBase)
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.Warn("janitor: reading output base", slog.String("error", err.Error()))
		}
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := known[entry.Name()]; ok {
			continue
		}
		path := filepath.Join(j.outputBase, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			j.logger.Warn("janitor: removing orphaned channel directory",
				slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		j.logger.Info("janitor: removed orphaned channel directory", slog.String("path", path))
	}
}
