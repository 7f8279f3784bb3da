package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/pricetracker/internal/price"
	"sjsage522/pricetracker/logger"
	apperrors "sjsage522/pricetracker/pkg/errors"
	"sjsage522/pricetracker/services/cache"
)

// PageExtractor loads pages through a PageSource and classifies them.
//
// When a cache is configured, a rate-limited host is blocked for BlockTime:
// Fetch then reports a fetch error without contacting the site.
type PageExtractor struct {
	source    PageSource
	selectors Selectors
	cacheSvc  cache.CacheService
	blockTime time.Duration
	log       *logger.Logger
}

// NewPageExtractor creates an extractor over source. cacheSvc may be nil.
func NewPageExtractor(source PageSource, selectors Selectors, cacheSvc cache.CacheService, blockTime time.Duration, log *logger.Logger) *PageExtractor {
	if log == nil {
		log = logger.Nop()
	}
	return &PageExtractor{
		source:    source,
		selectors: selectors,
		cacheSvc:  cacheSvc,
		blockTime: blockTime,
		log:       log,
	}
}

// Fetch implements Extractor
func (e *PageExtractor) Fetch(ctx context.Context, pageURL string) price.Reading {
	key := blockKey(pageURL)
	if e.blocked(key) {
		return price.FetchErrorf("%s is rate limiting requests; paused for up to %s", hostOf(pageURL), e.blockTime)
	}

	start := time.Now()
	body, err := e.source.Page(ctx, pageURL)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeRateLimit) {
			e.block(key)
		}
		var te *apperrors.TrackerError
		retryable := errors.As(err, &te) && te.IsRetryable()
		e.log.Warn().Err(err).Str("url", pageURL).Bool("retryable", retryable).Msg("Failed to load product page")
		return price.FetchError(err.Error())
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		parseErr := apperrors.NewParsing("extractor", "HTML parsing failed", err)
		e.log.Warn().Err(parseErr).Str("url", pageURL).Msg("Failed to parse product page")
		return price.FetchError(parseErr.Error())
	}

	reading := Classify(doc, e.selectors)
	e.log.Debug().
		Str("url", pageURL).
		Str("reading", reading.String()).
		Dur("elapsed", time.Since(start)).
		Msg("Classified product page")
	return reading
}

// Close implements Extractor
func (e *PageExtractor) Close() error {
	return e.source.Close()
}

func (e *PageExtractor) blocked(key string) bool {
	if e.cacheSvc == nil {
		return false
	}
	_, err := e.cacheSvc.Get(key)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrMiss) {
		e.log.Debug().Err(err).Str("key", key).Msg("Rate limit lookup failed, continuing")
	}
	return false
}

func (e *PageExtractor) block(key string) {
	if e.cacheSvc == nil || e.blockTime <= 0 {
		return
	}
	value := []byte(strconv.Itoa(int(e.blockTime / time.Second)))
	if err := e.cacheSvc.Set(key, value, e.blockTime); err != nil {
		e.log.Warn().Err(apperrors.NewCache("extractor", "failed to set rate limit block", err)).Msg("Rate limit block not stored")
		return
	}
	e.log.Info().Str("key", key).Dur("block_time", e.blockTime).Msg("Host rate limited, pausing requests")
}

func blockKey(pageURL string) string {
	return fmt.Sprintf("ratelimit:%s", hostOf(pageURL))
}

func hostOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return pageURL
	}
	return u.Host
}
