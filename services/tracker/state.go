package tracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sjsage522/pricetracker/internal/price"
	"sjsage522/pricetracker/services/notifier"
)

// Status is the run state machine position
type Status int

const (
	Idle Status = iota
	Running
	Stopping
	Stopped
	AlertedAndStopped
	FailedStopped
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case AlertedAndStopped:
		return "alerted_and_stopped"
	case FailedStopped:
		return "failed_stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether a run in this status is over
func (s Status) Terminal() bool {
	return s == Stopped || s == AlertedAndStopped || s == FailedStopped
}

func (s Status) label() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	case AlertedAndStopped:
		return "Alert sent"
	case FailedStopped:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reasons
const (
	ReasonStoppedByUser  = "stopped by user"
	ReasonShutdown       = "shutdown"
	ReasonTargetReached  = "target price reached"
	reasonCeilingFmt     = "failure ceiling reached (%d consecutive fetch errors)"
	reasonExtractorFmt   = "extractor unavailable: %v"
	reasonUnexpectedFmt  = "unexpected error: %v"
	reasonUnexpectedExit = "loop exited without a terminal state"
)

// RunState is owned by the loop goroutine of one run
type RunState struct {
	Status              Status
	Reason              string
	Cycle               int
	ConsecutiveFailures int
	History             *price.History
	LastReading         price.Reading
	NextCheckIn         time.Duration
	Notified            bool
	Delivery            *notifier.Outcome
	StartedAt           time.Time
}

// Snapshot is a read-only copy of a run's state for display
type Snapshot struct {
	Status              Status
	Reason              string
	URL                 string
	TargetPrice         decimal.Decimal
	Currency            string
	Cycle               int
	ConsecutiveFailures int
	// LastReading is the zero Reading before the first cycle completes
	LastReading price.Reading
	LastPrice   decimal.Decimal
	HasPrice    bool
	Trend       price.Trend
	History     []decimal.Decimal
	NextCheckIn time.Duration
	Notified    bool
	Delivery    string
	StatusLine  string
	Log         []string
	StartedAt   time.Time
	UpdatedAt   time.Time
}

func (s Snapshot) clone() Snapshot {
	s.History = append([]decimal.Decimal(nil), s.History...)
	s.Log = append([]string(nil), s.Log...)
	return s
}

// statusLine renders the one-line summary shown to the user
func (s Snapshot) statusLine() string {
	parts := []string{s.Status.label()}

	if s.HasPrice {
		amount := s.LastPrice.String()
		if s.Currency != "" {
			amount += " " + s.Currency
		}
		parts = append(parts, fmt.Sprintf("price %s %s", amount, s.Trend.Symbol()))
	} else if s.Status != Idle {
		parts = append(parts, "no price yet")
	}

	if s.LastReading.Kind != 0 && !s.LastReading.IsPrice() {
		parts = append(parts, s.LastReading.String())
	}
	if s.ConsecutiveFailures > 0 {
		parts = append(parts, fmt.Sprintf("%d consecutive errors", s.ConsecutiveFailures))
	}

	switch {
	case s.Status.Terminal():
		parts = append(parts, s.Reason)
	case s.Status == Running && s.NextCheckIn > 0:
		parts = append(parts, "next check in "+s.NextCheckIn.Round(time.Second).String())
	case s.Status == Running:
		parts = append(parts, "checking")
	}
	return strings.Join(parts, " | ")
}

// logTail keeps the most recent display log lines
type logTail struct {
	lines []string
	size  int
}

func newLogTail(size int) *logTail {
	return &logTail{lines: make([]string, 0, size), size: size}
}

func (l *logTail) add(line string) {
	if len(l.lines) == l.size {
		copy(l.lines, l.lines[1:])
		l.lines = l.lines[:l.size-1]
	}
	l.lines = append(l.lines, line)
}

func (l *logTail) snapshot() []string {
	return append([]string(nil), l.lines...)
}
