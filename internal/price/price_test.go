package price

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestTrendOf(t *testing.T) {
	tests := []struct {
		name   string
		values []decimal.Decimal
		want   Trend
	}{
		{"empty", nil, Unknown},
		{"single", []decimal.Decimal{d(100)}, Unknown},
		{"down", []decimal.Decimal{d(100), d(90)}, Down},
		{"up", []decimal.Decimal{d(90), d(100)}, Up},
		{"flat", []decimal.Decimal{d(100), d(100)}, Flat},
		{"only last two count", []decimal.Decimal{d(10), d(500), d(400)}, Down},
		{"scale does not matter", []decimal.Decimal{decimal.RequireFromString("100.00"), d(100)}, Flat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrendOf(tt.values))
		})
	}
}

func TestTrendSymbols(t *testing.T) {
	assert.Equal(t, "↑", Up.Symbol())
	assert.Equal(t, "↓", Down.Symbol())
	assert.Equal(t, "→", Flat.Symbol())
	assert.Equal(t, "·", Unknown.Symbol())
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(DefaultHistorySize)

	for i := int64(1); i <= DefaultHistorySize+1; i++ {
		h.Push(d(i * 100))
		assert.LessOrEqual(t, h.Len(), DefaultHistorySize)
	}

	values := h.Values()
	require.Len(t, values, DefaultHistorySize)
	for i, v := range values {
		assert.True(t, v.Equal(d(int64(i+2)*100)), "position %d holds %s", i, v)
	}

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.True(t, latest.Equal(d(1100)))
}

func TestHistoryValuesIsCopy(t *testing.T) {
	h := NewHistory(3)
	h.Push(d(1))
	values := h.Values()
	values[0] = d(42)

	latest, _ := h.Latest()
	assert.True(t, latest.Equal(d(1)))
}

func TestHistoryDefaults(t *testing.T) {
	h := NewHistory(0)
	assert.Equal(t, DefaultHistorySize, h.Cap())
	_, ok := h.Latest()
	assert.False(t, ok)
	assert.Equal(t, Unknown, h.Trend())

	h.Push(d(100))
	h.Push(d(90))
	assert.Equal(t, Down, h.Trend())
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"EGP 3,003.00", "3003"},
		{"$1,299.99", "1299.99"},
		{"Rs. 1,499", "1499"},
		{"5990", "5990"},
		{" 6,500.00 EGP", "6500"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseAmount(tt.text)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, text := range []string{"", "Currently unavailable", "0.00", "1.2.3"} {
		_, err := ParseAmount(text)
		assert.Error(t, err, text)
	}
}

func TestReadingString(t *testing.T) {
	assert.Equal(t, "price 5990", Found(d(5990)).String())
	assert.Equal(t, "unavailable: out of stock", Unavailable(OutOfStock).String())
	assert.Equal(t, "fetch error: timeout", FetchError("timeout").String())
	assert.Equal(t, "fetch error", FetchError(" ").String())
	assert.Equal(t, "fetch error: status 503", FetchErrorf("status %d", 503).String())
	assert.Equal(t, "no reading", Reading{Kind: Kind(9)}.String())
	assert.Equal(t, "no reading", Reading{}.String())
	assert.False(t, Reading{}.IsPrice())
}

func TestReadingKinds(t *testing.T) {
	assert.True(t, Found(d(1)).IsPrice())
	assert.True(t, Unavailable(NotFound).IsUnavailable())
	assert.True(t, FetchError("x").IsFetchError())
	assert.Equal(t, "fetch_error", KindFetchError.String())
	assert.Equal(t, "only available from third-party sellers", ThirdPartyOnly.String())
}
