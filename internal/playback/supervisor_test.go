package playback

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lintv/lintv/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestEscapeDrawtext(t *testing.T) {
	assert.Equal(t, "it_s __ fine", escapeDrawtext(`it's :\ fine`))
}

func TestDrawtextFilter_EscapesText(t *testing.T) {
	filter := drawtextFilter(`it's live`)
	assert.Contains(t, filter, "it_s live")
	assert.Contains(t, filter, "drawtext=text=")
}

func TestSupervisor_Spawn_MissingInput(t *testing.T) {
	detector := NewReadinessDetector(10*time.Millisecond, 100*time.Millisecond)
	sup := NewSupervisor("/nonexistent/ffmpeg", detector)

	exitCh := make(chan int, 1)
	req := SpawnRequest{
		InputPath:   filepath.Join(t.TempDir(), "missing.mp4"),
		OutputDir:   t.TempDir(),
		Slot:        models.SlotA,
		Role:        RoleMovie,
		SegmentSecs: 2,
		WindowSize:  6,
	}

	handle, err := sup.Spawn(context.Background(), req, func() {}, func(code int) { exitCh <- code })
	assert.Error(t, err)
	assert.Nil(t, handle)

	select {
	case code := <-exitCh:
		assert.Equal(t, -1, code)
	case <-time.After(time.Second):
		t.Fatal("onExit was never called")
	}
}
