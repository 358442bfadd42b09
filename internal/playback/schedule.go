package playback

import (
	"context"
	"time"

	"github.com/lintv/lintv/internal/ffmpeg"
	"github.com/lintv/lintv/internal/models"
)

const (
	maxUpcomingRows = 10
	rowGap          = time.Second
)

// ScheduleProjector derives a forward-looking, human-readable schedule from
// a channel's current movie and queue, probing each file's duration with a
// bounded timeout and falling back to a fixed estimate on failure.
type ScheduleProjector struct {
	prober           *ffmpeg.Prober
	fallbackDuration time.Duration
	location         *time.Location
}

// NewScheduleProjector builds a projector that probes with prober, falls
// back to fallbackDuration on probe failure, and renders times in loc.
func NewScheduleProjector(prober *ffmpeg.Prober, fallbackDuration time.Duration, loc *time.Location) *ScheduleProjector {
	return &ScheduleProjector{prober: prober, fallbackDuration: fallbackDuration, location: loc}
}

// Project builds up to 11 rows: the current entry (if any, marked current)
// plus up to 10 upcoming queue entries. It is not recomputed per viewer
// poll -- callers invoke it on enqueue and on movie-start only.
func (p *ScheduleProjector) Project(ctx context.Context, current *models.Movie, currentStart time.Time, queue []models.Movie) []models.ScheduleRow {
	var rows []models.ScheduleRow
	cursor := time.Now()

	if current != nil {
		start := currentStart
		dur := p.probeDuration(ctx, current.FilePath)
		end := start.Add(dur)
		rows = append(rows, models.ScheduleRow{
			Title:     current.Title,
			StartTime: formatWAT(start, p.location),
			EndTime:   formatWAT(end, p.location),
			Current:   true,
		})
		cursor = end
	}

	upcoming := queue
	if len(upcoming) > maxUpcomingRows {
		upcoming = upcoming[:maxUpcomingRows]
	}

	for _, movie := range upcoming {
		start := cursor.Add(rowGap)
		dur := p.probeDuration(ctx, movie.FilePath)
		end := start.Add(dur)
		rows = append(rows, models.ScheduleRow{
			Title:     movie.Title,
			StartTime: formatWAT(start, p.location),
			EndTime:   formatWAT(end, p.location),
			Current:   false,
		})
		cursor = end
	}

	return rows
}

// probeDuration probes a file's duration, falling back to a fixed estimate
// on failure or timeout. Probe failures never block playback.
func (p *ScheduleProjector) probeDuration(ctx context.Context, path string) time.Duration {
	info, err := p.prober.ProbeSimple(ctx, path)
	if err != nil || info.Duration == 0 {
		return p.fallbackDuration
	}
	return info.DurationValue()
}

func formatWAT(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}
