// Package browser owns the authenticated rod session the harvester scrapes
// through.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"watchdxg/internal/fetcher"
	"watchdxg/internal/logger"
)

// Credentials log the scraping account in when the profile directory holds
// no live session.
type Credentials struct {
	Username string
	Password string
	// Contact answers the platform's "enter your phone or email" challenge.
	Contact string
}

// Config configures the browser session.
type Config struct {
	BaseURL  string
	Headless bool
	ProxyURL string
	// ProfileDir keeps cookies between runs so login is rarely needed.
	ProfileDir   string
	Credentials  Credentials
	NavTimeout   time.Duration
	LoginTimeout time.Duration
	// ListTimeout bounds the wait for the followers list to render.
	ListTimeout time.Duration
}

// Browser wraps a rod.Browser and its default page. The default page is
// reserved for session and follower-list navigation; extractions open their
// own pages through NewPage.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      Config
	log      logger.Logger

	mu   sync.Mutex
	page *rod.Page
}

// New launches a browser and connects to it.
func New(cfg Config, log logger.Logger) (*Browser, error) {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	l := launcher.New().Headless(cfg.Headless)
	if cfg.ProxyURL != "" {
		l = l.Proxy(cfg.ProxyURL)
	}
	if cfg.ProfileDir != "" {
		l = l.UserDataDir(cfg.ProfileDir)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	rb := rod.New().ControlURL(controlURL)
	if err := rb.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	log.Debug("Browser started",
		logger.Bool("headless", cfg.Headless),
		logger.String("profile_dir", cfg.ProfileDir),
	)
	return &Browser{browser: rb, launcher: l, cfg: cfg, log: log}, nil
}

// NewPage opens an isolated page for one extraction.
func (b *Browser) NewPage() (fetcher.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	return &rodPage{page: page}, nil
}

// CurrentPage returns the session's default page, creating it on first use.
func (b *Browser) CurrentPage() (fetcher.Page, error) {
	p, err := b.defaultPage()
	if err != nil {
		return nil, err
	}
	return &rodPage{page: p, shared: true}, nil
}

func (b *Browser) defaultPage() (*rod.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.page != nil {
		return b.page, nil
	}
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create default page: %w", err)
	}
	b.page = page
	return page, nil
}

// FollowersMarkup loads account's followers list on the default page and
// returns its markup once the first follower row has rendered.
func (b *Browser) FollowersMarkup(ctx context.Context, account string) (string, error) {
	page, err := b.CurrentPage()
	if err != nil {
		return "", err
	}

	target := b.cfg.BaseURL + "/" + account + "/followers"
	if err := page.Navigate(ctx, target, b.cfg.NavTimeout); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", target, err)
	}
	if err := page.WaitElement(ctx, followerCell, b.cfg.ListTimeout); err != nil {
		return "", fmt.Errorf("followers list did not render: %w", err)
	}
	return page.HTML()
}

// Close closes the browser and kills the launched process.
func (b *Browser) Close() error {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return err
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return nil
}

// rodPage adapts *rod.Page to fetcher.Page.
type rodPage struct {
	page *rod.Page
	// shared pages belong to the session and survive Close.
	shared bool
}

func (p *rodPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	page := p.page.Context(ctx)
	if timeout > 0 {
		page = page.Timeout(timeout)
	}
	return page.Navigate(url)
}

func (p *rodPage) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	page := p.page.Context(ctx)
	if timeout > 0 {
		page = page.Timeout(timeout)
	}
	_, err := page.Element(selector)
	return err
}

func (p *rodPage) HTML() (string, error) {
	return p.page.HTML()
}

func (p *rodPage) Close() error {
	if p.shared {
		return nil
	}
	return p.page.Close()
}
