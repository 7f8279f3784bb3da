package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"sjsage522/pricetracker/internal/price"
)

// Classify turns a loaded product page into a reading. Availability markers
// win over any price on the page, since a listed price is then not one the
// shop itself sells at.
func Classify(doc *goquery.Document, sel Selectors) price.Reading {
	if matchesAny(doc, sel.ThirdPartyOnly) {
		return price.Unavailable(price.ThirdPartyOnly)
	}
	if matchesAny(doc, sel.OutOfStock) {
		return price.Unavailable(price.OutOfStock)
	}

	for _, selector := range sel.Price {
		if amount, ok := firstAmount(doc, selector); ok {
			return price.Found(amount)
		}
	}

	return price.Unavailable(price.NotFound)
}

func matchesAny(doc *goquery.Document, selectors []string) bool {
	for _, selector := range selectors {
		if doc.Find(selector).Length() > 0 {
			return true
		}
	}
	return false
}

// firstAmount returns the first parsable price among the elements matched by selector
func firstAmount(doc *goquery.Document, selector string) (decimal.Decimal, bool) {
	var (
		amount decimal.Decimal
		found  bool
	)
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		parsed, err := price.ParseAmount(strings.TrimSpace(s.Text()))
		if err != nil {
			return true
		}
		amount, found = parsed, true
		return false
	})
	return amount, found
}
