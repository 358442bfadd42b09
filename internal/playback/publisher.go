package playback

import (
	"fmt"
	"io"
	"os"
	"time"
)

// ErrNotReady indicates a slot failed publication verification.
var ErrNotReady = fmt.Errorf("slot not ready for publication")

// Publisher atomically republishes a channel's public playlist to point at a
// chosen slot's files. It is the only writer of master.m3u8/stream.m3u8, and
// publishes by byte-copy -- never by symbolic link -- because some viewer
// chains and static file servers mishandle symlinks.
type Publisher struct {
	retries int
	backoff time.Duration
}

// NewPublisher builds a Publisher with the default retry policy: 3 attempts,
// 500ms spacing.
func NewPublisher() *Publisher {
	return &Publisher{retries: 3, backoff: 500 * time.Millisecond}
}

// Publish verifies slot paths and, if playable, byte-copies its playlist
// pair onto the channel's stable public names. It retries the whole
// verify-then-copy sequence up to p.retries times with p.backoff spacing.
func (p *Publisher) Publish(paths SlotPaths) error {
	var lastErr error
	for attempt := 0; attempt < p.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(p.backoff)
		}
		if err := p.publishOnce(paths); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func (p *Publisher) publishOnce(paths SlotPaths) error {
	if !verifyPublishable(paths) {
		return ErrNotReady
	}

	publicMaster := PublicMasterPlaylist(paths.OutputDir)
	publicStream := PublicStreamPlaylist(paths.OutputDir)

	// Unlink any pre-existing public playlists; warn-but-continue semantics
	// belong to the caller's logger, so a missing file is not an error here.
	_ = os.Remove(publicMaster)
	_ = os.Remove(publicStream)

	if err := copyFile(paths.MasterPlaylist(), publicMaster); err != nil {
		return fmt.Errorf("copying master playlist: %w", err)
	}
	if err := copyFile(paths.StreamPlaylist(), publicStream); err != nil {
		return fmt.Errorf("copying stream playlist: %w", err)
	}
	return nil
}

// verifyPublishable checks that the playlist pair exists and is non-empty,
// lists at least two segments, and at least two of the first three
// referenced segments are individually ≥5000 bytes.
func verifyPublishable(paths SlotPaths) bool {
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

	sample := segments
	if len(sample) > 3 {
		sample = sample[:3]
	}

	large := 0
	for _, name := range sample {
		info, err := os.Stat(paths.SegmentPath(name))
		if err != nil {
			continue
		}
		if info.Size() >= minSegmentBytes {
			large++
		}
	}
	return large >= 2
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
