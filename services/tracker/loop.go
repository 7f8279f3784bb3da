package tracker

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"sjsage522/pricetracker/internal/extractor"
	"sjsage522/pricetracker/internal/price"
	"sjsage522/pricetracker/services/notifier"
)

const (
	notifyTimeout  = 30 * time.Second
	publishTimeout = 5 * time.Second
)

var randFloat64 = rand.Float64

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

// loop runs one tracking run to a terminal state. Deferred steps run in
// reverse: release the extractor, turn a panic into a failure, publish the
// terminal state, then signal Done.
func (t *Tracker) loop(ctx context.Context, r *run) {
	defer close(r.done)
	defer t.finish(ctx, r)
	defer func() {
		if p := recover(); p != nil {
			r.exit = &exit{status: FailedStopped, reason: fmt.Sprintf(reasonUnexpectedFmt, p)}
		}
	}()

	ex, err := t.open(ctx)
	if err == nil && ex == nil {
		err = fmt.Errorf("no extractor returned")
	}
	if err != nil {
		r.exit = &exit{status: FailedStopped, reason: fmt.Sprintf(reasonExtractorFmt, err)}
		return
	}
	defer t.closeExtractor(r, ex)

	for {
		if e := t.checkStop(ctx, r); e != nil {
			r.exit = e
			return
		}

		r.state.Cycle++
		r.state.NextCheckIn = 0
		t.logf(r, levelDebug, "Checking price (cycle %d)", r.state.Cycle)
		t.publishSnapshot(r)

		reading := t.fetch(ctx, r, ex)
		e := t.apply(ctx, r, reading)
		t.publishSnapshot(r)
		t.publishEvent(ctx, r, eventReading)
		if e != nil {
			r.exit = e
			return
		}

		if e := t.wait(ctx, r); e != nil {
			r.exit = e
			return
		}
	}
}

// checkStop looks for a pending stop or shutdown without blocking
func (t *Tracker) checkStop(ctx context.Context, r *run) *exit {
	select {
	case <-r.stop:
		return t.stopping(r, ReasonStoppedByUser)
	case <-ctx.Done():
		return t.stopping(r, ReasonShutdown)
	default:
		return nil
	}
}

func (t *Tracker) stopping(r *run, reason string) *exit {
	r.state.Status = Stopping
	r.state.NextCheckIn = 0
	t.logf(r, levelInfo, "Stopping (%s)", reason)
	t.publishSnapshot(r)
	return &exit{status: Stopped, reason: reason}
}

type fetchResult struct {
	reading price.Reading
	panic   interface{}
}

// fetch runs one extractor call. The call is detached from stop and shutdown
// and only bounded by the fetch timeout.
func (t *Tracker) fetch(ctx context.Context, r *run, ex extractor.Extractor) price.Reading {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.settings.FetchTimeout)
	defer cancel()

	results := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				results <- fetchResult{panic: p}
			}
		}()
		results <- fetchResult{reading: ex.Fetch(fctx, r.settings.URL)}
	}()

	select {
	case res := <-results:
		if res.panic != nil {
			panic(res.panic)
		}
		return res.reading
	case <-fctx.Done():
		return price.FetchErrorf("fetch timed out after %s", r.settings.FetchTimeout)
	}
}

// apply folds one reading into the run state and returns the exit when the
// reading ends the run
func (t *Tracker) apply(ctx context.Context, r *run, reading price.Reading) *exit {
	st := &r.state

	switch {
	case reading.IsUnavailable():
		st.LastReading = reading
		st.ConsecutiveFailures = 0
		t.logf(r, levelInfo, "Product unavailable: %s", reading.Reason)
		return nil

	case reading.IsPrice() && reading.Amount.IsPositive():
		st.LastReading = reading
		st.ConsecutiveFailures = 0
		st.History.Push(reading.Amount)
		t.logf(r, levelInfo, "Current price: %s %s %s", reading.Amount, r.settings.Currency, st.History.Trend().Symbol())

		if reading.Amount.GreaterThan(r.settings.TargetPrice) {
			return nil
		}
		t.logf(r, levelInfo, "Target reached (%s <= %s), sending alert", reading.Amount, r.settings.TargetPrice)
		t.alert(ctx, r, reading)
		return &exit{status: AlertedAndStopped, reason: ReasonTargetReached}

	default:
		if !reading.IsFetchError() {
			reading = price.FetchErrorf("invalid reading: %s", reading)
		}
		st.LastReading = reading
		st.ConsecutiveFailures++
		t.logf(r, levelWarn, "Check failed (%d/%d): %s", st.ConsecutiveFailures, r.settings.FailureCeiling, reading)

		if st.ConsecutiveFailures >= r.settings.FailureCeiling {
			return &exit{status: FailedStopped, reason: fmt.Sprintf(reasonCeilingFmt, st.ConsecutiveFailures)}
		}
		return nil
	}
}

// alert sends the one notification of the run. The outcome is recorded but
// never changes the transition.
func (t *Tracker) alert(ctx context.Context, r *run, reading price.Reading) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	outcome := t.deliver(nctx, notifier.AlertMessage(reading.Amount, r.settings.Currency, r.settings.URL))
	r.state.Notified = true
	r.state.Delivery = &outcome

	if outcome.Delivered {
		t.logf(r, levelInfo, "Alert delivered")
	} else {
		t.logf(r, levelWarn, "Alert not delivered: %s", outcome.Detail)
	}
}

// deliver calls the notifier, folding a panic into a failed delivery
func (t *Tracker) deliver(ctx context.Context, message string) (outcome notifier.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			outcome = notifier.DeliveryFailed(fmt.Sprintf("notifier panicked: %v", p))
		}
	}()
	return t.notifier.Notify(ctx, message)
}

// wait sleeps for one jittered interval, refreshing the countdown every tick
// and returning early on stop or shutdown
func (t *Tracker) wait(ctx context.Context, r *run) *exit {
	d := t.jitter(r.settings.Interval)
	deadline := time.Now().Add(d)
	t.logf(r, levelInfo, "Waiting %ds for next check", int(d.Round(time.Second)/time.Second))

	r.state.NextCheckIn = d
	t.publishSnapshot(r)

	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			r.state.NextCheckIn = 0
			return nil
		case <-ticker.C:
			r.state.NextCheckIn = max(time.Until(deadline), 0)
			t.publishSnapshot(r)
		case <-r.stop:
			return t.stopping(r, ReasonStoppedByUser)
		case <-ctx.Done():
			return t.stopping(r, ReasonShutdown)
		}
	}
}

func (t *Tracker) closeExtractor(r *run, ex extractor.Extractor) {
	if err := ex.Close(); err != nil {
		t.logf(r, levelWarn, "Failed to release extractor: %v", err)
		return
	}
	t.logf(r, levelDebug, "Extractor released")
}

// finish moves the run into its terminal state and publishes it
func (t *Tracker) finish(ctx context.Context, r *run) {
	if r.exit == nil {
		r.exit = &exit{status: FailedStopped, reason: reasonUnexpectedExit}
	}
	r.state.Status = r.exit.status
	r.state.Reason = r.exit.reason
	r.state.NextCheckIn = 0

	lvl := levelInfo
	if r.exit.status == FailedStopped {
		lvl = levelError
	}
	t.logf(r, lvl, "Tracker %s: %s", r.exit.status.label(), r.exit.reason)

	t.publishSnapshot(r)
	t.publishEvent(ctx, r, eventTerminal)
}

// publishSnapshot stores an immutable copy of the run state for readers
func (t *Tracker) publishSnapshot(r *run) {
	st := r.state
	s := Snapshot{
		Status:              st.Status,
		Reason:              st.Reason,
		URL:                 r.settings.URL,
		TargetPrice:         r.settings.TargetPrice,
		Currency:            r.settings.Currency,
		Cycle:               st.Cycle,
		ConsecutiveFailures: st.ConsecutiveFailures,
		LastReading:         st.LastReading,
		Trend:               st.History.Trend(),
		History:             st.History.Values(),
		NextCheckIn:         st.NextCheckIn,
		Notified:            st.Notified,
		Log:                 r.logs.snapshot(),
		StartedAt:           st.StartedAt,
		UpdatedAt:           time.Now(),
	}
	if latest, ok := st.History.Latest(); ok {
		s.LastPrice = latest
		s.HasPrice = true
	}
	if st.Delivery != nil {
		s.Delivery = st.Delivery.String()
	}
	s.StatusLine = s.statusLine()
	t.snapshot.Store(&s)
}

// logf appends a line to the run's log tail and mirrors it to the logger
func (t *Tracker) logf(r *run, lvl level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if lvl != levelDebug {
		r.logs.add(fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg))
	}

	var ev *zerolog.Event
	switch lvl {
	case levelDebug:
		ev = t.log.Debug()
	case levelWarn:
		ev = t.log.Warn()
	case levelError:
		ev = t.log.Error()
	default:
		ev = t.log.Info()
	}
	ev.Int("cycle", r.state.Cycle).Msg(msg)
}
