package models

import "time"

// Slot identifies one of the two transcoder output slots a channel
// alternates between while swapping the currently active stream.
type Slot bool

const (
	SlotA Slot = false
	SlotB Slot = true
)

// String returns "A" or "B".
func (s Slot) String() string {
	if s == SlotA {
		return "A"
	}
	return "B"
}

// Other returns the slot not currently referred to.
func (s Slot) Other() Slot {
	return !s
}

// ChannelState is the Channel Controller's state machine position.
type ChannelState string

const (
	StateIdle         ChannelState = "idle"
	StateAdLoop       ChannelState = "ad_loop"
	StatePreloading   ChannelState = "preloading"
	StatePlaying      ChannelState = "playing"
	StateTransitioning ChannelState = "transitioning"
	StateRecovering   ChannelState = "recovering"
)

// Movie describes a single piece of media queued for playback on a channel.
type Movie struct {
	Title      string    `json:"title"`
	FilePath   string    `json:"file_path"`
	AddedBy    string    `json:"added_by"`
	AddedAt    time.Time `json:"added_at"`
	ByteSize   int64     `json:"byte_size"`
	FormatHint string    `json:"format_hint,omitempty"`
}

// Validate checks required Movie fields.
func (m *Movie) Validate() error {
	if m.Title == "" {
		return ErrTitleRequired
	}
	if m.FilePath == "" {
		return ErrFilePathRequired
	}
	if m.AddedBy == "" {
		return ErrAddedByRequired
	}
	return nil
}

// ScheduleRow is a single projected entry in a channel's upcoming lineup.
// Current marks the row that is actually playing right now, as opposed to
// a queued entry -- the only way a caller can tell the two apart when the
// channel is in the ad loop with a non-empty queue.
type ScheduleRow struct {
	Title     string `json:"title"`
	StartTime string `json:"start_time"` // HH:MM, Africa/Lagos
	EndTime   string `json:"end_time"`   // HH:MM, Africa/Lagos
	Current   bool   `json:"current"`
}

// Channel is the persisted, durable description of a linear channel: its
// identity, its queue of movies, and the currently playing snapshot. It
// contains no runtime transcoder state -- that is held by the channel's
// playback.Controller.
type Channel struct {
	BaseModel

	Name           string        `json:"name"`
	Queue          []Movie       `json:"queue"`
	CurrentMovie   *Movie        `json:"current_movie,omitempty"`
	CurrentStarted time.Time     `json:"current_started,omitempty"`
	Schedule       []ScheduleRow `json:"schedule"`
	OutputDir      string        `json:"output_dir"`
}

// Validate checks required Channel fields.
func (c *Channel) Validate() error {
	if c.Name == "" {
		return ErrNameRequired
	}
	if c.OutputDir == "" {
		return ErrOutputDirRequired
	}
	return nil
}

// Enqueue appends a movie to the channel's queue.
func (c *Channel) Enqueue(m Movie) {
	c.Queue = append(c.Queue, m)
}

// Dequeue removes and returns the head of the queue, if any.
func (c *Channel) Dequeue() (Movie, bool) {
	if len(c.Queue) == 0 {
		return Movie{}, false
	}
	m := c.Queue[0]
	c.Queue = c.Queue[1:]
	return m, true
}
