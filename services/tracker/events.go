package tracker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	eventReading  = "reading"
	eventTerminal = "terminal"
)

// Event is the record published to the event stream once per cycle and once
// when a run ends
type Event struct {
	Type                string           `json:"type"`
	URL                 string           `json:"url"`
	Status              string           `json:"status"`
	Reason              string           `json:"reason,omitempty"`
	Cycle               int              `json:"cycle"`
	Reading             string           `json:"reading,omitempty"`
	Kind                string           `json:"kind,omitempty"`
	Price               *decimal.Decimal `json:"price,omitempty"`
	Target              decimal.Decimal  `json:"target"`
	Currency            string           `json:"currency,omitempty"`
	Trend               string           `json:"trend,omitempty"`
	ConsecutiveFailures int              `json:"consecutive_failures"`
	Notified            bool             `json:"notified"`
	Delivery            string           `json:"delivery,omitempty"`
	Time                time.Time        `json:"time"`
}

func (t *Tracker) newEvent(r *run, typ string) Event {
	st := r.state
	ev := Event{
		Type:                typ,
		URL:                 r.settings.URL,
		Status:              st.Status.String(),
		Reason:              st.Reason,
		Cycle:               st.Cycle,
		Target:              r.settings.TargetPrice,
		Currency:            r.settings.Currency,
		ConsecutiveFailures: st.ConsecutiveFailures,
		Notified:            st.Notified,
		Time:                time.Now(),
	}
	if st.LastReading.Kind != 0 {
		ev.Reading = st.LastReading.String()
		ev.Kind = st.LastReading.Kind.String()
	}
	if st.LastReading.IsPrice() {
		amount := st.LastReading.Amount
		ev.Price = &amount
		ev.Trend = st.History.Trend().String()
	}
	if st.Delivery != nil {
		ev.Delivery = st.Delivery.String()
	}
	return ev
}

// publishEvent sends an event to the publisher. Failures are logged and
// otherwise ignored.
func (t *Tracker) publishEvent(ctx context.Context, r *run, typ string) {
	payload, err := json.Marshal(t.newEvent(r, typ))
	if err != nil {
		t.log.Warn().Err(err).Str("event", typ).Msg("Failed to encode event")
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := t.publisher.Publish(pctx, typ, payload); err != nil {
		t.log.Warn().Err(err).Str("event", typ).Msg("Failed to publish event")
	}
}
