package progress

import (
	"context"
	"sync/atomic"
	"time"
)

// ProgressFunc receives (bytes_done, bytes_total) updates for one file.
// bytes_total is 0 when the server did not report a size.
type ProgressFunc func(downloaded, total int64)

// State is the shared byte counter of one download attempt. Every chunk
// fetcher of the attempt adds to it; the presentation layer only reads.
// Position never decreases.
type State struct {
	done  atomic.Int64
	total atomic.Int64
}

func NewState(total int64) *State {
	s := &State{}
	s.total.Store(total)
	return s
}

// Add advances the counter by n and returns the new position.
// Non-positive values are ignored.
func (s *State) Add(n int64) int64 {
	if n <= 0 {
		return s.done.Load()
	}
	return s.done.Add(n)
}

func (s *State) Position() int64 { return s.done.Load() }

func (s *State) Length() int64 { return s.total.Load() }

func (s *State) SetLength(total int64) { s.total.Store(total) }

// Snapshot returns position and length read back to back.
func (s *State) Snapshot() (int64, int64) {
	return s.done.Load(), s.total.Load()
}

// Watch polls state every interval and calls fn whenever the position moved.
// It returns after ctx is cancelled, delivering one last update first.
func Watch(ctx context.Context, state *State, interval time.Duration, fn ProgressFunc) {
	if fn == nil {
		<-ctx.Done()
		return
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var lastBytes int64 = -1
	for {
		select {
		case <-ticker.C:
			done, total := state.Snapshot()
			if done != lastBytes {
				fn(done, total)
				lastBytes = done
			}
		case <-ctx.Done():
			// Final update when the attempt ends
			fn(state.Snapshot())
			return
		}
	}
}
