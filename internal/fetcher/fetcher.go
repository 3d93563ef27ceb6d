// Package fetcher captures the rendered markup of a profile timeline.
package fetcher

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"watchdxg/internal/logger"
	"watchdxg/internal/model"
)

// Page is the part of a browser tab the fetcher drives.
type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// WaitElement blocks until selector matches an element.
	WaitElement(ctx context.Context, selector string, timeout time.Duration) error
	HTML() (string, error)
	Close() error
}

// PageOpener hands out a fresh, isolated page per call.
type PageOpener interface {
	NewPage() (Page, error)
}

// Config holds the navigation and readiness settings.
type Config struct {
	BaseURL string
	// ReadySelector marks a timeline that has hydrated enough to scrape.
	ReadySelector string
	NavTimeout    time.Duration
	ReadyTimeout  time.Duration
	// A random settle delay in [SettleMin, SettleMax] follows readiness so
	// lazy counters and media finish rendering.
	SettleMin time.Duration
	SettleMax time.Duration
}

// Fetcher makes single extraction attempts. Retries and admission control
// are layered on by the scheduler.
type Fetcher struct {
	opener PageOpener
	cfg    Config
	log    logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithSleep replaces the settle-delay sleeper.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = sleep }
}

// NewFetcher creates a Fetcher opening pages from opener.
func NewFetcher(opener PageOpener, cfg Config, log logger.Logger, opts ...Option) *Fetcher {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	f := &Fetcher{
		opener: opener,
		cfg:    cfg,
		log:    log,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ProfileURL is the with-replies timeline of handle.
func (f *Fetcher) ProfileURL(handle string) string {
	return f.cfg.BaseURL + "/" + url.PathEscape(handle) + "/with_replies"
}

// Fetch performs one extraction attempt for handle. The page it opens is
// closed on every return path.
func (f *Fetcher) Fetch(ctx context.Context, handle string) (model.RawExtract, error) {
	startTime := time.Now()

	page, err := f.opener.NewPage()
	if err != nil {
		return model.RawExtract{}, fmt.Errorf("failed to create page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			f.log.Debug("Closing page failed", logger.Handle(handle), logger.Error(err))
		}
	}()

	target := f.ProfileURL(handle)
	if err := page.Navigate(ctx, target, f.cfg.NavTimeout); err != nil {
		return model.RawExtract{}, fmt.Errorf("failed to navigate to %s: %w", target, err)
	}

	if err := page.WaitElement(ctx, f.cfg.ReadySelector, f.cfg.ReadyTimeout); err != nil {
		return model.RawExtract{}, fmt.Errorf("failed to wait for element '%s': %w", f.cfg.ReadySelector, err)
	}

	if err := f.sleep(ctx, f.settleDelay()); err != nil {
		return model.RawExtract{}, fmt.Errorf("settle delay: %w", err)
	}

	html, err := page.HTML()
	if err != nil {
		return model.RawExtract{}, fmt.Errorf("failed to get page HTML: %w", err)
	}

	f.log.Debug("Profile captured",
		logger.Handle(handle),
		logger.Duration("load_time", time.Since(startTime)),
		logger.Int("bytes", len(html)),
	)
	return model.RawExtract{Handle: handle, Markup: html}, nil
}

func (f *Fetcher) settleDelay() time.Duration {
	lo, hi := f.cfg.SettleMin, f.cfg.SettleMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
