package price

import "github.com/shopspring/decimal"

// Trend is the direction of the latest price change
type Trend int

const (
	Unknown Trend = iota
	Up
	Down
	Flat
)

func (t Trend) String() string {
	switch t {
	case Up:
		return "up"
	case Down:
		return "down"
	case Flat:
		return "flat"
	default:
		return "unknown"
	}
}

// Symbol is the short form used in status lines
func (t Trend) Symbol() string {
	switch t {
	case Up:
		return "↑"
	case Down:
		return "↓"
	case Flat:
		return "→"
	default:
		return "·"
	}
}

// TrendOf compares the last two amounts of values. Fewer than two amounts
// yield Unknown.
func TrendOf(values []decimal.Decimal) Trend {
	if len(values) < 2 {
		return Unknown
	}
	latest, previous := values[len(values)-1], values[len(values)-2]
	switch latest.Cmp(previous) {
	case -1:
		return Down
	case 1:
		return Up
	default:
		return Flat
	}
}
