package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lintv/lintv/internal/catalog"
	"github.com/lintv/lintv/internal/playback"
	"github.com/lintv/lintv/internal/storage"
)

func newTestChannelHandler(t *testing.T) (*ChannelHandler, *catalog.Store) {
	t.Helper()

	sandbox, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)
	store, err := catalog.NewStore(sandbox, "channels.json")
	require.NoError(t, err)

	loc, err := time.LoadLocation("Africa/Lagos")
	require.NoError(t, err)

	cfg := playback.Config{
		FFmpegPath:       "/nonexistent/ffmpeg",
		ProbePath:        "/nonexistent/ffprobe",
		AdFilePath:       "/nonexistent/ad.mp4",
		SegmentSeconds:   2,
		WindowSize:       6,
		ReadinessPoll:    10 * time.Millisecond,
		ReadinessTimeout: 50 * time.Millisecond,
		PreloadDeadline:  100 * time.Millisecond,
		ProbeTimeout:     50 * time.Millisecond,
		FallbackDuration: 90 * time.Minute,
		Location:         loc,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := playback.NewRegistry(store, t.TempDir(), cfg, logger)
	t.Cleanup(registry.Close)

	return NewChannelHandler(store, registry), store
}

func newRouter(h *ChannelHandler) chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestChannelHandler_CreateChannel(t *testing.T) {
	h, store := newTestChannelHandler(t)
	router := newRouter(h)

	body := bytes.NewBufferString(`{"name":"Test Channel","output_dir":"test-channel"}`)
	req := httptest.NewRequest(http.MethodPost, "/channels/", body)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	channels := store.All()
	require.Len(t, channels, 1)
	assert.Equal(t, "Test Channel", channels[0].Name)
}

func TestChannelHandler_CreateChannel_InvalidBody(t *testing.T) {
	h, _ := newTestChannelHandler(t)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/channels/", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChannelHandler_CreateChannel_MissingName(t *testing.T) {
	h, _ := newTestChannelHandler(t)
	router := newRouter(h)

	body := bytes.NewBufferString(`{"output_dir":"test-channel"}`)
	req := httptest.NewRequest(http.MethodPost, "/channels/", body)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChannelHandler_ListChannels(t *testing.T) {
	h, store := newTestChannelHandler(t)
	router := newRouter(h)

	for _, name := range []string{"One", "Two"} {
		body := bytes.NewBufferString(`{"name":"` + name + `","output_dir":"` + name + `"}`)
		req := httptest.NewRequest(http.MethodPost, "/channels/", body)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/channels/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	assert.Len(t, store.All(), 2)
}

func TestChannelHandler_InitChannel_NotFound(t *testing.T) {
	h, _ := newTestChannelHandler(t)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/channels/unknown-id/init", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChannelHandler_EnqueueMovie_NotFound(t *testing.T) {
	h, _ := newTestChannelHandler(t)
	router := newRouter(h)

	body := bytes.NewBufferString(`{"title":"Movie","file_path":"/a.mp4","added_by":"alice"}`)
	req := httptest.NewRequest(http.MethodPost, "/channels/unknown-id/queue", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChannelHandler_GetStatus_NotFound(t *testing.T) {
	h, _ := newTestChannelHandler(t)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/channels/unknown-id/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
