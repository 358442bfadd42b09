// Package handlers provides HTTP API handlers for lintv's channel engine.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lintv/lintv/internal/catalog"
	"github.com/lintv/lintv/internal/models"
	"github.com/lintv/lintv/internal/observability"
	"github.com/lintv/lintv/internal/playback"
)

// ChannelHandler exposes the channel lifecycle and queue API: initializing a
// channel's controller, enqueuing movies, and reporting status, queue, and
// schedule snapshots.
type ChannelHandler struct {
	store    *catalog.Store
	registry *playback.Registry
}

// NewChannelHandler creates a handler bound to the given catalog store and
// playback registry.
func NewChannelHandler(store *catalog.Store, registry *playback.Registry) *ChannelHandler {
	return &ChannelHandler{store: store, registry: registry}
}

// Register registers the channel routes on the router.
func (h *ChannelHandler) Register(r chi.Router) {
	r.Route("/channels", func(r chi.Router) {
		r.Post("/", h.CreateChannel)
		r.Get("/", h.ListChannels)
		r.Route("/{channelID}", func(r chi.Router) {
			r.Post("/init", h.InitChannel)
			r.Get("/status", h.GetStatus)
			r.Post("/queue", h.EnqueueMovie)
			r.Get("/queue", h.GetQueue)
			r.Get("/schedule", h.GetSchedule)
		})
	})
}

type createChannelRequest struct {
	Name      string `json:"name"`
	OutputDir string `json:"output_dir"`
}

// CreateChannel registers a new channel in the catalog. It does not start
// the channel's controller; call InitChannel to start playback.
func (h *ChannelHandler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ch := &models.Channel{Name: req.Name, OutputDir: req.OutputDir}
	ch.EnsureID()
	if err := ch.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Put(ch); err != nil {
		logger := observability.WithOperation(observability.LoggerFromContext(r.Context()), "create_channel")
		observability.WithError(logger, err).Error("failed to persist channel")
		writeError(w, http.StatusInternalServerError, "creating channel: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, ch)
}

// ListChannels returns every channel in the catalog.
func (h *ChannelHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.All())
}

// InitChannel starts (or returns the already-running) controller for a
// channel, which begins playback from its persisted queue.
func (h *ChannelHandler) InitChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "channelID")
	if _, err := h.registry.GetOrStart(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

type enqueueMovieRequest struct {
	Title      string `json:"title"`
	FilePath   string `json:"file_path"`
	AddedBy    string `json:"added_by"`
	ByteSize   int64  `json:"byte_size"`
	FormatHint string `json:"format_hint,omitempty"`
}

// EnqueueMovie appends a movie to the channel's queue.
func (h *ChannelHandler) EnqueueMovie(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "channelID")
	ctrl, err := h.registry.GetOrStart(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req enqueueMovieRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	movie := models.Movie{
		Title:      req.Title,
		FilePath:   req.FilePath,
		AddedBy:    req.AddedBy,
		AddedAt:    time.Now(),
		ByteSize:   req.ByteSize,
		FormatHint: req.FormatHint,
	}

	if err := ctrl.EnqueueMovie(movie); err != nil {
		if isValidationErr(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger := observability.WithOperation(observability.LoggerFromContext(r.Context()), "enqueue_movie")
		observability.WithError(logger, err).Error("failed to enqueue movie")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, ctrl.Status())
}

// GetStatus returns the channel controller's current playback status.
func (h *ChannelHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "channelID")
	ctrl, err := h.registry.GetOrStart(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Status())
}

// GetQueue returns the channel's pending queue, 1-indexed by position.
func (h *ChannelHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "channelID")
	ctrl, err := h.registry.GetOrStart(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ctrl.QueueSnapshot())
}

// GetSchedule returns the channel's projected upcoming lineup.
func (h *ChannelHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "channelID")
	ctrl, err := h.registry.GetOrStart(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Schedule())
}

func isValidationErr(err error) bool {
	var verr models.ErrValidation
	if errors.As(err, &verr) {
		return true
	}
	switch {
	case errors.Is(err, models.ErrTitleRequired),
		errors.Is(err, models.ErrFilePathRequired),
		errors.Is(err, models.ErrAddedByRequired):
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
