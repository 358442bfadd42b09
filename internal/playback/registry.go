package playback

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/lintv/lintv/internal/catalog"
)

// Registry owns one Controller per live channel, keyed by channel id. It is
// the playback engine's top-level object: handlers look channels up here
// rather than holding their own Controller references.
type Registry struct {
	store        *catalog.Store
	outputBase   string
	cfgTemplate  Config
	logger       *slog.Logger

	mu          sync.RWMutex
	controllers map[string]*Controller
}

// NewRegistry builds an empty Registry. cfgTemplate is copied per channel;
// outputBase is the parent directory under which each channel gets its own
// output subdirectory named by id.
func NewRegistry(store *catalog.Store, outputBase string, cfgTemplate Config, logger *slog.Logger) *Registry {
	return &Registry{
		store:       store,
		outputBase:  outputBase,
		cfgTemplate: cfgTemplate,
		logger:      logger,
		controllers: make(map[string]*Controller),
	}
}

// GetOrStart returns the running Controller for id, starting and
// initializing one if it does not yet exist.
func (r *Registry) GetOrStart(id string) (*Controller, error) {
	r.mu.RLock()
	c, ok := r.controllers[id]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.controllers[id]; ok {
		return c, nil
	}

	ch, ok := r.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("channel %s not found", id)
	}

	outputDir := filepath.Join(r.outputBase, id)
	c = NewController(id, ch.Name, r.store, outputDir, r.cfgTemplate, r.logger)
	if err := c.InitializeChannel(); err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing channel %s: %w", id, err)
	}

	r.controllers[id] = c
	return c, nil
}

// Get returns the running Controller for id, if any, without starting one.
func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controllers[id]
	return c, ok
}

// Stop closes and forgets the Controller for id, if running.
func (r *Registry) Stop(id string) {
	r.mu.Lock()
	c, ok := r.controllers[id]
	if ok {
		delete(r.controllers, id)
	}
	r.mu.Unlock()

	if ok {
		c.Close()
	}
}

// Close stops every running Controller.
func (r *Registry) Close() {
	r.mu.Lock()
	controllers := r.controllers
	r.controllers = make(map[string]*Controller)
	r.mu.Unlock()

	for _, c := range controllers {
		c.Close()
	}
}
