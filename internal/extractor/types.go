package extractor

import (
	"context"
	"io"
	"time"

	"sjsage522/pricetracker/internal/price"
)

// Extractor yields one price reading per call. It never returns an error:
// every failure is folded into a price.FetchError reading.
type Extractor interface {
	// Fetch loads url and classifies its price
	Fetch(ctx context.Context, url string) price.Reading

	// Close releases any browser or network resources held for the run
	Close() error
}

// PageSource loads a product page and returns its HTML
type PageSource interface {
	Page(ctx context.Context, url string) (io.Reader, error)
	Close() error
}

// Selectors contains CSS selectors for the elements the classifier inspects.
// Each list is tried in order.
type Selectors struct {
	// ThirdPartyOnly marks pages where the shop itself does not sell the item
	ThirdPartyOnly []string
	// OutOfStock marks pages that explicitly show the item as out of stock
	OutOfStock []string
	// Price points at elements whose text is the displayed price
	Price []string
}

// DefaultSelectors returns selectors for Amazon product pages. The scoped
// main-offer price is preferred over the page-wide one.
func DefaultSelectors() Selectors {
	return Selectors{
		ThirdPartyOnly: []string{"#buybox-see-all-buying-choices"},
		OutOfStock:     []string{"#outOfStock"},
		Price: []string{
			"#apex_desktop .a-price .a-offscreen",
			".a-price .a-offscreen",
		},
	}
}

// Options configures Open
type Options struct {
	UseBrowser bool
	// ChromePath overrides the auto-detected Chrome binary
	ChromePath string
	UserAgent  string
	// SettleDelay is how long the browser waits after load for client-side rendering
	SettleDelay time.Duration
	// BlockTime is how long to stop requesting a host after it rate limits us
	BlockTime time.Duration
	Selectors Selectors
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		UseBrowser:  true,
		SettleDelay: 500 * time.Millisecond,
		BlockTime:   10 * time.Minute,
		Selectors:   DefaultSelectors(),
	}
}
