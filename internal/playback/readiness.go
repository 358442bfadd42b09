package playback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
	"github.com/lintv/lintv/internal/models"
)

const minSegmentBytes = 5000

// segmentPattern matches the per-slot segment filename scheme, capturing the
// slot letter so a detector for slot A never accepts slot B's segments.
var segmentPattern = regexp.MustCompile(`^segment_([AB])_\d+\.ts$`)

// ReadinessDetector polls a slot's output directory until its HLS playlists
// reference at least two segment files and every referenced segment exists on
// disk and is larger than minSegmentBytes, or its deadline elapses.
type ReadinessDetector struct {
	pollInterval time.Duration
	deadline     time.Duration
}

// NewReadinessDetector builds a detector with the given poll interval and
// overall deadline.
func NewReadinessDetector(pollInterval, deadline time.Duration) *ReadinessDetector {
	return &ReadinessDetector{pollInterval: pollInterval, deadline: deadline}
}

// ErrReadinessTimeout is returned when the deadline elapses without a
// passing observation.
var ErrReadinessTimeout = fmt.Errorf("readiness timeout")

// Wait blocks until paths becomes playable or the deadline elapses. On
// deadline it performs one final check and only then reports the timeout.
func (d *ReadinessDetector) Wait(ctx context.Context, paths SlotPaths) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	deadlineTimer := time.NewTimer(d.deadline)
	defer deadlineTimer.Stop()

	for {
		if checkReady(paths) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadlineTimer.C:
			if checkReady(paths) {
				return nil
			}
			return ErrReadinessTimeout
		case <-ticker.C:
			continue
		}
	}
}

// checkReady implements the playability predicate for a single slot.
func checkReady(paths SlotPaths) bool {
	masterInfo, err := os.Stat(paths.MasterPlaylist())
	if err != nil || masterInfo.Size() == 0 {
		return false
	}

	streamData, err := os.ReadFile(paths.StreamPlaylist())
	if err != nil || len(streamData) == 0 {
		return false
	}

	segments := listSegments(streamData, paths.Slot)
	if len(segments) < 2 {
		return false
	}

	for _, name := range segments {
		info, err := os.Stat(paths.SegmentPath(name))
		if err != nil || info.Size() <= minSegmentBytes {
			return false
		}
	}
	return true
}

// listSegments parses a media playlist and returns the segment filenames
// that match this slot's naming scheme, in playlist order.
func listSegments(data []byte, slot models.Slot) []string {
	pl, err := playlist.Unmarshal(data)
	if err != nil {
		return nil
	}
	media, ok := pl.(*playlist.Media)
	if !ok {
		return nil
	}

	want := slot.String()
	var names []string
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		name := filepath.Base(seg.URI)
		m := segmentPattern.FindStringSubmatch(name)
		if m == nil || m[1] != want {
			continue
		}
		names = append(names, name)
	}
	return names
}
