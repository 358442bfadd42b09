package playback

import "github.com/lintv/lintv/internal/models"

// event is a message delivered to a channel's mailbox. Each event drives
// exactly one state transition and returns; there are no re-entrant
// callbacks.
type event interface {
	isEvent()
}

type evInitialize struct {
	done chan error
}

type evEnqueue struct {
	movie models.Movie
	done  chan error
}

type evPlayAd struct {
	done chan error
}

type evPreloadNext struct {
	done chan error
}

type evPlayNext struct {
	done chan error
}

// evExited is delivered by the active slot's watcher goroutine when its
// transcoder child process terminates, carrying its exit code (-1 for spawn
// or input failure). Preload spawns are awaited synchronously within their
// own action and never need to reach the mailbox.
type evExited struct {
	slot models.Slot
	code int
}

func (evInitialize) isEvent()  {}
func (evEnqueue) isEvent()     {}
func (evPlayAd) isEvent()      {}
func (evPreloadNext) isEvent() {}
func (evPlayNext) isEvent()    {}
func (evExited) isEvent()      {}
