package cricinfo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"
)

const (
	// BaseURL for ESPNcricinfo pages
	BaseURL = "https://www.espncricinfo.com"

	// UserAgent for browser sessions
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// MinRequestInterval to prevent rate limiting
	MinRequestInterval = 2 * time.Second

	DefaultPageTimeout  = 60 * time.Second
	DefaultReadyTimeout = 20 * time.Second
)

// PageRequest describes a page to render and the element that marks it as ready
type PageRequest struct {
	URL            string
	ReadySelector  string
	ReadyTimeout   time.Duration
	ScrollToBottom bool
}

// Page is rendered markup. Ready is false when the readiness marker did
// not appear in time and HTML is whatever had rendered by then.
type Page struct {
	URL   string
	HTML  string
	Ready bool
}

// Fetcher renders pages
type Fetcher interface {
	Fetch(ctx context.Context, req PageRequest) (*Page, error)
}

// ClientConfig tunes the headless browser
type ClientConfig struct {
	Headless     bool
	UserAgent    string
	PageTimeout  time.Duration
	ReadyTimeout time.Duration
	MinInterval  time.Duration
	Logger       log.FieldLogger
}

// Client renders ESPNcricinfo pages in headless Chrome with rate limiting
type Client struct {
	mu          sync.Mutex
	lastRequest time.Time
	interval    time.Duration

	pageTimeout  time.Duration
	readyTimeout time.Duration
	logger       log.FieldLogger

	// Chromedp context for headless browser
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewClient starts a browser allocator. Tabs are opened per fetch.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = UserAgent
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = DefaultPageTimeout
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.MinInterval < 0 {
		return nil, fmt.Errorf("negative request interval %v", cfg.MinInterval)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.WithField("component", "cricinfo-client")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Client{
		interval:     cfg.MinInterval,
		pageTimeout:  cfg.PageTimeout,
		readyTimeout: cfg.ReadyTimeout,
		logger:       cfg.Logger,
		allocCtx:     allocCtx,
		cancel:       cancel,
	}, nil
}

// Close shuts the browser down
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Fetch navigates to req.URL and waits up to the ready timeout for
// req.ReadySelector. Navigation failures are returned as *FetchError; a
// readiness timeout returns the partial page with Ready unset.
func (c *Client) Fetch(ctx context.Context, req PageRequest) (*Page, error) {
	if err := c.waitTurn(ctx); err != nil {
		return nil, &FetchError{URL: req.URL, Err: err}
	}

	tabCtx, closeTab := chromedp.NewContext(c.allocCtx)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, c.pageTimeout)
	defer cancel()

	c.logger.WithField("url", req.URL).Debug("navigating")
	if err := chromedp.Run(tabCtx, chromedp.Navigate(req.URL)); err != nil {
		return nil, &FetchError{URL: req.URL, Err: contextCause(ctx, err)}
	}

	ready := c.waitReady(tabCtx, req)

	if req.ScrollToBottom {
		if err := chromedp.Run(tabCtx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil)); err != nil {
			c.logger.WithError(err).WithField("url", req.URL).Warn("scroll failed")
		} else {
			ready = c.waitReady(tabCtx, req) && ready
		}
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, &FetchError{URL: req.URL, Err: contextCause(ctx, err)}
	}
	if html == "" {
		return nil, &FetchError{URL: req.URL, Err: errors.New("empty HTML content returned")}
	}

	if !ready {
		c.logger.WithFields(log.Fields{
			"url":      req.URL,
			"selector": req.ReadySelector,
		}).Warn("page not ready before timeout, proceeding with available content")
	}

	return &Page{URL: req.URL, HTML: html, Ready: ready}, nil
}

// waitReady polls for the readiness selector within a bounded wait
func (c *Client) waitReady(tabCtx context.Context, req PageRequest) bool {
	if req.ReadySelector == "" {
		return true
	}

	timeout := req.ReadyTimeout
	if timeout <= 0 {
		timeout = c.readyTimeout
	}

	waitCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()

	return chromedp.Run(waitCtx, chromedp.WaitVisible(req.ReadySelector, chromedp.ByQuery)) == nil
}

// waitTurn enforces the minimum interval between navigations
func (c *Client) waitTurn(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastRequest.IsZero() {
		if wait := c.interval - time.Since(c.lastRequest); wait > 0 {
			c.logger.Debugf("rate limiting: waiting %v before next request", wait)
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	c.lastRequest = time.Now()
	return nil
}

// contextCause prefers the caller's cancellation over chromedp's error
func contextCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}
