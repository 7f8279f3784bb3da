// Package price holds the values exchanged between the extractor and the
// tracking loop: one Reading per poll cycle and the bounded History of
// successful readings.
package price

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tags which variant a Reading holds. The zero Kind is not a valid
// reading.
type Kind int

const (
	KindPrice Kind = iota + 1
	KindUnavailable
	KindFetchError
)

func (k Kind) String() string {
	switch k {
	case KindPrice:
		return "price"
	case KindUnavailable:
		return "unavailable"
	case KindFetchError:
		return "fetch_error"
	default:
		return "unknown"
	}
}

// UnavailableReason explains why a page had no price the tracker can act on
type UnavailableReason int

const (
	OutOfStock UnavailableReason = iota + 1
	ThirdPartyOnly
	NotFound
)

func (r UnavailableReason) String() string {
	switch r {
	case OutOfStock:
		return "out of stock"
	case ThirdPartyOnly:
		return "only available from third-party sellers"
	case NotFound:
		return "price not found"
	default:
		return "unknown"
	}
}

// Reading is the outcome of one poll attempt.
//
// Only the fields matching Kind are meaningful: Amount for KindPrice, Reason
// for KindUnavailable and Detail for KindFetchError.
type Reading struct {
	Kind   Kind
	Amount decimal.Decimal
	Reason UnavailableReason
	Detail string
}

// Found returns a price reading
func Found(amount decimal.Decimal) Reading {
	return Reading{Kind: KindPrice, Amount: amount}
}

// Unavailable returns a reading for a page that loaded but shows no usable price
func Unavailable(reason UnavailableReason) Reading {
	return Reading{Kind: KindUnavailable, Reason: reason}
}

// FetchError returns a reading for a failed fetch
func FetchError(detail string) Reading {
	return Reading{Kind: KindFetchError, Detail: detail}
}

// FetchErrorf is FetchError with formatting
func FetchErrorf(format string, args ...interface{}) Reading {
	return FetchError(fmt.Sprintf(format, args...))
}

func (r Reading) IsPrice() bool       { return r.Kind == KindPrice }
func (r Reading) IsUnavailable() bool { return r.Kind == KindUnavailable }
func (r Reading) IsFetchError() bool  { return r.Kind == KindFetchError }

func (r Reading) String() string {
	switch r.Kind {
	case KindPrice:
		return "price " + r.Amount.String()
	case KindUnavailable:
		return "unavailable: " + r.Reason.String()
	case KindFetchError:
		detail := strings.TrimSpace(r.Detail)
		if detail == "" {
			return "fetch error"
		}
		return "fetch error: " + detail
	default:
		return "no reading"
	}
}
