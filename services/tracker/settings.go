package tracker

import (
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"sjsage522/pricetracker/internal/price"
	apperrors "sjsage522/pricetracker/pkg/errors"
)

const (
	DefaultFailureCeiling = 3
	DefaultLogTailSize    = 20
	DefaultFetchTimeout   = 45 * time.Second
	DefaultInterval       = 5 * time.Minute
)

// Settings are the per-run tracker settings. A run copies them at Start and
// never changes them.
type Settings struct {
	URL         string
	TargetPrice decimal.Decimal
	// Currency is only used for display and the alert text
	Currency string
	Interval time.Duration
	// FailureCeiling is the number of consecutive fetch errors that ends a run
	FailureCeiling int
	FetchTimeout   time.Duration
	HistorySize    int
	LogTailSize    int
}

// DefaultSettings returns settings with every optional field filled in
func DefaultSettings() Settings {
	return Settings{
		Currency:       "EGP",
		Interval:       DefaultInterval,
		FailureCeiling: DefaultFailureCeiling,
		FetchTimeout:   DefaultFetchTimeout,
		HistorySize:    price.DefaultHistorySize,
		LogTailSize:    DefaultLogTailSize,
	}
}

// Validate checks the settings a run cannot start without
func (s Settings) Validate() error {
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.NewValidation("tracker", "product URL must be an absolute http(s) URL")
	}
	if !s.TargetPrice.IsPositive() {
		return apperrors.NewValidation("tracker", "target price must be greater than zero")
	}
	if s.Interval <= 0 {
		return apperrors.NewValidation("tracker", "poll interval must be positive")
	}
	if s.FailureCeiling < 0 || s.HistorySize < 0 || s.LogTailSize < 0 || s.FetchTimeout < 0 {
		return apperrors.NewValidation("tracker", "limits must not be negative")
	}
	return nil
}

// withDefaults fills zero optional fields
func (s Settings) withDefaults() Settings {
	if s.FailureCeiling == 0 {
		s.FailureCeiling = DefaultFailureCeiling
	}
	if s.FetchTimeout == 0 {
		s.FetchTimeout = DefaultFetchTimeout
	}
	if s.HistorySize == 0 {
		s.HistorySize = price.DefaultHistorySize
	}
	if s.LogTailSize == 0 {
		s.LogTailSize = DefaultLogTailSize
	}
	return s
}
