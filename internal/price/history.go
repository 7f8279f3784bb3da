package price

import "github.com/shopspring/decimal"

// DefaultHistorySize is the number of recent prices kept per run
const DefaultHistorySize = 10

// History is a bounded FIFO of the most recent successful price amounts.
// It is not safe for concurrent use; the tracking loop owns it.
type History struct {
	values []decimal.Decimal
	size   int
}

// NewHistory creates a history holding at most size amounts. A non-positive
// size falls back to DefaultHistorySize.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		values: make([]decimal.Decimal, 0, size),
		size:   size,
	}
}

// Push appends amount and evicts the oldest entry once the history is full
func (h *History) Push(amount decimal.Decimal) {
	if len(h.values) == h.size {
		copy(h.values, h.values[1:])
		h.values = h.values[:h.size-1]
	}
	h.values = append(h.values, amount)
}

// Values returns a copy of the amounts, oldest first
func (h *History) Values() []decimal.Decimal {
	out := make([]decimal.Decimal, len(h.values))
	copy(out, h.values)
	return out
}

func (h *History) Len() int { return len(h.values) }

func (h *History) Cap() int { return h.size }

// Latest returns the newest amount, if any
func (h *History) Latest() (decimal.Decimal, bool) {
	if len(h.values) == 0 {
		return decimal.Zero, false
	}
	return h.values[len(h.values)-1], true
}

// Trend classifies the last two amounts
func (h *History) Trend() Trend {
	return TrendOf(h.values)
}
