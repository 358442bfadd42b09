// Package playback implements the per-channel live-streaming engine: the
// transcoder supervisor, readiness detector, active-slot publisher, schedule
// projector, and the channel controller state machine that ties them
// together.
package playback

import (
	"fmt"
	"path/filepath"

	"github.com/lintv/lintv/internal/models"
)

// SlotPaths resolves the well-known filenames the transcoder and the
// Readiness Detector/Publisher agree on for a given slot within a channel's
// output directory.
type SlotPaths struct {
	OutputDir string
	Slot      models.Slot
}

func (p SlotPaths) MasterPlaylist() string {
	return filepath.Join(p.OutputDir, fmt.Sprintf("master_%s.m3u8", p.Slot))
}

func (p SlotPaths) StreamPlaylist() string {
	return filepath.Join(p.OutputDir, fmt.Sprintf("stream_%s.m3u8", p.Slot))
}

// SegmentPattern is the ffmpeg -hls_segment_filename template for this slot.
func (p SlotPaths) SegmentPattern() string {
	return filepath.Join(p.OutputDir, fmt.Sprintf("segment_%s_%%03d.ts", p.Slot))
}

// MasterName is the bare -master_pl_name value (ffmpeg writes it inside OutputDir).
func (p SlotPaths) MasterName() string {
	return fmt.Sprintf("master_%s.m3u8", p.Slot)
}

func (p SlotPaths) SegmentPath(name string) string {
	return filepath.Join(p.OutputDir, name)
}

// PublicMasterPlaylist is the stable, publicly-served master playlist name.
func PublicMasterPlaylist(outputDir string) string {
	return filepath.Join(outputDir, "master.m3u8")
}

// PublicStreamPlaylist is the stable, publicly-served media playlist name.
func PublicStreamPlaylist(outputDir string) string {
	return filepath.Join(outputDir, "stream.m3u8")
}
