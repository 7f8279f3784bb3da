// Package tracker runs the polling loop for one product: fetch a reading,
// track the price trend, alert once when the target is reached, and pace
// itself with jittered, interruptible waits.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sjsage522/pricetracker/internal/extractor"
	"sjsage522/pricetracker/internal/price"
	"sjsage522/pricetracker/logger"
	"sjsage522/pricetracker/services/notifier"
	"sjsage522/pricetracker/services/publisher"
)

var (
	// ErrAlreadyRunning is returned by Start while a run is still live
	ErrAlreadyRunning = errors.New("tracker is already running")
	// ErrInvalidSettings wraps settings validation failures
	ErrInvalidSettings = errors.New("invalid tracker settings")
)

// ExtractorFactory opens the extractor for one run. The tracker closes it
// when the run ends, whatever the reason.
type ExtractorFactory func(ctx context.Context) (extractor.Extractor, error)

// Tracker owns at most one live run at a time. Start, Stop, Snapshot and
// Wait may be called from any goroutine; only the run's loop mutates its
// state.
type Tracker struct {
	open      ExtractorFactory
	notifier  notifier.Notifier
	publisher publisher.Publisher
	log       *logger.Logger

	jitter func(time.Duration) time.Duration
	// tick is the refresh period of the countdown shown while waiting
	tick time.Duration

	current  atomic.Pointer[run]
	snapshot atomic.Pointer[Snapshot]
}

// New creates a tracker. n, pub and log may be nil.
func New(open ExtractorFactory, n notifier.Notifier, pub publisher.Publisher, log *logger.Logger) *Tracker {
	if pub == nil {
		pub = publisher.NoopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if n == nil {
		n = notifier.NewLogNotifier(log)
	}
	t := &Tracker{
		open:      open,
		notifier:  n,
		publisher: pub,
		log:       log,
		jitter:    Jitter,
		tick:      time.Second,
	}
	idle := Snapshot{Status: Idle}
	idle.StatusLine = idle.statusLine()
	t.snapshot.Store(&idle)
	return t
}

// run is one Start-to-terminal lifetime
type run struct {
	settings Settings
	state    RunState
	logs     *logTail
	exit     *exit

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

type exit struct {
	status Status
	reason string
}

func newRun(s Settings) *run {
	return &run{
		settings: s,
		state: RunState{
			Status:    Running,
			History:   price.NewHistory(s.HistorySize),
			StartedAt: time.Now(),
		},
		logs: newLogTail(s.LogTailSize),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (r *run) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Start begins a new run with fresh state. ctx bounds the whole run:
// cancelling it stops the run at the next cycle boundary.
func (t *Tracker) Start(ctx context.Context, s Settings) error {
	s = s.withDefaults()
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	prev := t.current.Load()
	if prev != nil && !prev.finished() {
		return ErrAlreadyRunning
	}
	r := newRun(s)
	if !t.current.CompareAndSwap(prev, r) {
		return ErrAlreadyRunning
	}

	t.logf(r, levelInfo, "Tracking %s (target %s %s, every ~%s)", s.URL, s.TargetPrice, s.Currency, s.Interval)
	t.publishSnapshot(r)

	go t.loop(ctx, r)
	return nil
}

// Stop asks the live run to stop. It returns immediately; the run observes
// the request at its next wait tick or cycle boundary, never mid-fetch.
func (t *Tracker) Stop() {
	if r := t.current.Load(); r != nil {
		r.requestStop()
	}
}

// Running reports whether a run is live
func (t *Tracker) Running() bool {
	r := t.current.Load()
	return r != nil && !r.finished()
}

// Done is closed when the current run has ended. Before the first Start it
// is already closed.
func (t *Tracker) Done() <-chan struct{} {
	if r := t.current.Load(); r != nil {
		return r.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Wait blocks until the current run ends and returns its final snapshot
func (t *Tracker) Wait() Snapshot {
	<-t.Done()
	return t.Snapshot()
}

// Snapshot returns the latest published state
func (t *Tracker) Snapshot() Snapshot {
	return t.snapshot.Load().clone()
}

// Jitter returns a duration drawn uniformly from [0.8, 1.2) × interval
func Jitter(interval time.Duration) time.Duration {
	return time.Duration(float64(interval) * (0.8 + 0.4*randFloat64()))
}
