// Package notifier delivers price alerts to a chat. Delivery is best effort:
// callers get an Outcome, never an error.
package notifier

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Outcome reports what happened to one alert
type Outcome struct {
	Delivered bool
	Detail    string
}

// Delivered returns a successful outcome
func Delivered() Outcome {
	return Outcome{Delivered: true}
}

// DeliveryFailed returns a failed outcome with a human readable detail
func DeliveryFailed(detail string) Outcome {
	return Outcome{Detail: detail}
}

func (o Outcome) String() string {
	if o.Delivered {
		return "delivered"
	}
	return "delivery failed: " + o.Detail
}

// Notifier sends a text message to a messaging endpoint
type Notifier interface {
	Notify(ctx context.Context, message string) Outcome
}

// AlertMessage renders the price drop alert
func AlertMessage(amount decimal.Decimal, currency, url string) string {
	label := amount.String()
	if currency != "" {
		label += " " + currency
	}
	return fmt.Sprintf("🚨 PRICE DROP! %s\nBuy now: %s", label, url)
}
