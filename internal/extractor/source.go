package extractor

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"sjsage522/pricetracker/helpers"
	"sjsage522/pricetracker/logger"
	apperrors "sjsage522/pricetracker/pkg/errors"
	"sjsage522/pricetracker/services/cache"
)

// HTTPSource loads pages with a plain HTTP request. It holds no resources.
type HTTPSource struct {
	opts helpers.FetchOptions
}

// NewHTTPSource creates an HTTP page source
func NewHTTPSource(userAgent string) *HTTPSource {
	return &HTTPSource{opts: helpers.FetchOptions{UserAgent: userAgent}}
}

// Page implements PageSource
func (s *HTTPSource) Page(ctx context.Context, url string) (io.Reader, error) {
	return helpers.FetchPage(ctx, url, s.opts)
}

// Close implements PageSource
func (s *HTTPSource) Close() error { return nil }

// ChromeSource renders pages in a headless Chrome that lives as long as the
// source. Every Page call opens a fresh tab and closes it afterwards.
type ChromeSource struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	settleDelay   time.Duration
	closeOnce     sync.Once
	closeErr      error
}

// NewChromeSource launches the browser. The browser is not tied to ctx's
// cancellation; it is released by Close.
func NewChromeSource(ctx context.Context, opts Options, log *logger.Logger) (*ChromeSource, error) {
	if log == nil {
		log = logger.Nop()
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = helpers.DefaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1366, 900),
	)
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			log.Debug().Msgf("chromedp: "+format, args...)
		}),
	)

	// Run with no actions starts the browser
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, apperrors.NewBrowser("chrome", "failed to launch browser", err)
	}

	return &ChromeSource{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		settleDelay:   opts.SettleDelay,
	}, nil
}

// Page implements PageSource. The tab is closed when ctx is done or the
// page has been read, whichever comes first.
func (s *ChromeSource) Page(ctx context.Context, url string) (io.Reader, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if s.settleDelay > 0 {
		actions = append(actions, chromedp.Sleep(s.settleDelay))
	}
	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, apperrors.NewBrowser("chrome", "failed to render "+url, err)
	}
	return strings.NewReader(html), nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *ChromeSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.browserCtx)
		s.cancelBrowser()
		s.cancelAlloc()
	})
	return s.closeErr
}

// Open builds the extractor for one run: a headless browser when
// opts.UseBrowser is set, plain HTTP otherwise.
func Open(ctx context.Context, opts Options, cacheSvc cache.CacheService, log *logger.Logger) (*PageExtractor, error) {
	if log == nil {
		log = logger.Nop()
	}
	if len(opts.Selectors.Price) == 0 {
		opts.Selectors = DefaultSelectors()
	}

	var source PageSource = NewHTTPSource(opts.UserAgent)
	if opts.UseBrowser {
		chrome, err := NewChromeSource(ctx, opts, log)
		if err != nil {
			return nil, err
		}
		source = chrome
	}

	log.Info().Bool("browser", opts.UseBrowser).Msg("Extractor opened")
	return NewPageExtractor(source, opts.Selectors, cacheSvc, opts.BlockTime, log), nil
}
