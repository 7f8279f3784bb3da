package price

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount turns displayed price text such as "EGP 3,003.00" into an
// amount. Everything except digits and the decimal point is dropped, so
// thousands separators and currency labels are ignored.
func ParseAmount(text string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	clean := strings.Trim(b.String(), ".")
	if clean == "" {
		return decimal.Zero, fmt.Errorf("no digits in price text %q", text)
	}

	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price text %q: %w", text, err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("price must be positive, got %s", amount)
	}
	return amount, nil
}
