package pipeline

import "sync/atomic"

// Snapshot is a point-in-time copy of run progress. Failed includes
// Cancelled.
type Snapshot struct {
	Discovered int64 `json:"discovered" yaml:"discovered"`
	Completed  int64 `json:"completed" yaml:"completed"`
	Failed     int64 `json:"failed" yaml:"failed"`
	Cancelled  int64 `json:"cancelled" yaml:"cancelled"`
}

// Done is how many discovered URLs have reached a final outcome.
func (s Snapshot) Done() int64 {
	return s.Completed + s.Failed
}

// Progress holds monotonically increasing run counters. It is safe to poll
// from any goroutine while a run is in progress.
type Progress struct {
	discovered atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	cancelled  atomic.Int64
}

// Snapshot reads all counters.
func (p *Progress) Snapshot() Snapshot {
	return Snapshot{
		Discovered: p.discovered.Load(),
		Completed:  p.completed.Load(),
		Failed:     p.failed.Load(),
		Cancelled:  p.cancelled.Load(),
	}
}

func (p *Progress) addDiscovered(n int) {
	p.discovered.Add(int64(n))
}

func (p *Progress) complete() {
	p.completed.Add(1)
}

func (p *Progress) fail(cancelled bool) {
	if cancelled {
		p.cancelled.Add(1)
	}
	p.failed.Add(1)
}

// EventKind says what happened to a URL.
type EventKind string

const (
	EventDiscovered EventKind = "discovered"
	EventCompleted  EventKind = "completed"
	EventFailed     EventKind = "failed"
	EventCancelled  EventKind = "cancelled"
)

// Event is a progress notification. Events are dropped rather than block the
// run when the receiver falls behind; Progress is always exact.
type Event struct {
	Kind     EventKind
	URL      string
	Reason   string
	Snapshot Snapshot
}
