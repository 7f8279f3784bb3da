package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"slices"
	"time"

	"golang.org/x/net/html/charset"

	apperrors "sjsage522/pricetracker/pkg/errors"
)

// DefaultUserAgent is a desktop Chrome agent sent when none is configured
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTP client and header configurations
var (
	userAgents = []string{
		DefaultUserAgent,
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	}

	// HTTP client with timeout; per-request deadlines come from the context
	client = &http.Client{
		Timeout: 60 * time.Second,
	}
)

// FetchOptions tunes a single page fetch
type FetchOptions struct {
	// UserAgent overrides the randomly chosen agent when set
	UserAgent string
	// AcceptLanguage defaults to English
	AcceptLanguage string
}

// FetchPage sends an HTTP GET request with browser-like headers, converts
// the response body to UTF-8 (if needed), and returns it as an io.Reader.
//
// A 429/430 response yields a rate_limit TrackerError, other failures a
// network TrackerError.
func FetchPage(ctx context.Context, url string, opts FetchOptions) (io.Reader, error) {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewNetwork("http", "failed to create request", err)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = userAgents[rnd.Intn(len(userAgents))]
	}
	acceptLanguage := opts.AcceptLanguage
	if acceptLanguage == "" {
		acceptLanguage = "en-US,en;q=0.9"
	}

	// Set browser-like headers
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("upgrade-insecure-requests", "1")

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.NewNetwork("http", "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	// Check for rate limiting
	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		return nil, apperrors.NewRateLimit("http", resp.Header.Get("Retry-After"))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewNetwork("http", fmt.Sprintf("fetch %s unexpected status code: %d", url, resp.StatusCode), nil)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetwork("http", "failed to read response body", err)
	}

	// Determine the encoding from Content-Type header and body content
	encoding, name, _ := charset.DetermineEncoding(bodyBytes, resp.Header.Get("Content-Type"))

	// If already UTF-8, return as is
	if name == "utf-8" || name == "UTF-8" {
		return bytes.NewReader(bodyBytes), nil
	}

	// Convert to UTF-8 if necessary
	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, apperrors.NewParsing("http", "failed to read converted UTF-8 body", err)
	}

	return &buf, nil
}
