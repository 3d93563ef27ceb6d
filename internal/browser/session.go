package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"

	"watchdxg/internal/logger"
	"watchdxg/internal/model"
)

// Login and session markers.
const (
	banner        = `header[role="banner"]`
	usernameInput = `input[autocomplete="username"]`
	contactInput  = `input[data-testid="ocfEnterTextTextInput"]`
	passwordInput = `input[name="password"]`
	followerCell  = `button[data-testid="UserCell"]`
)

var errNoCredentials = errors.New("no credentials configured")

// EnsureSession makes sure the default page is logged in, running the login
// flow when it is not. It is safe to call repeatedly. Every failure wraps
// model.ErrSession.
func (b *Browser) EnsureSession(ctx context.Context) error {
	page, err := b.defaultPage()
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrSession, err)
	}
	page = page.Context(ctx)

	if err := page.Timeout(b.cfg.NavTimeout).Navigate(b.cfg.BaseURL + "/home"); err != nil {
		return fmt.Errorf("%w: failed to open home: %w", model.ErrSession, err)
	}

	var loggedIn bool
	markLoggedIn := func(*rod.Element) error {
		loggedIn = true
		return nil
	}
	_, err = page.Timeout(b.cfg.LoginTimeout).Race().
		Element(banner).Handle(markLoggedIn).
		Element(usernameInput).
		Do()
	if err != nil {
		return fmt.Errorf("%w: home page did not settle: %w", model.ErrSession, err)
	}
	if loggedIn && !onLoginFlow(currentURL(page)) {
		b.log.Debug("Session already authenticated")
		return nil
	}

	if err := b.login(page); err != nil {
		return fmt.Errorf("%w: login: %w", model.ErrSession, err)
	}

	if _, err := page.Timeout(b.cfg.LoginTimeout).Element(banner); err != nil {
		return fmt.Errorf("%w: no banner after login: %w", model.ErrSession, err)
	}
	if onLoginFlow(currentURL(page)) {
		return fmt.Errorf("%w: still on login flow at %s", model.ErrSession, currentURL(page))
	}
	b.log.Info("Logged in", logger.String("username", b.cfg.Credentials.Username))
	return nil
}

func (b *Browser) login(page *rod.Page) error {
	creds := b.cfg.Credentials
	if creds.Username == "" || creds.Password == "" {
		return errNoCredentials
	}
	b.log.Info("Session not authenticated, logging in")

	if !onLoginFlow(currentURL(page)) {
		if err := page.Timeout(b.cfg.NavTimeout).Navigate(b.cfg.BaseURL + "/i/flow/login"); err != nil {
			return fmt.Errorf("failed to open login flow: %w", err)
		}
	}

	user, err := page.Timeout(b.cfg.LoginTimeout).Element(usernameInput)
	if err != nil {
		return fmt.Errorf("username field: %w", err)
	}
	if err := submit(user, creds.Username); err != nil {
		return fmt.Errorf("username: %w", err)
	}

	// Either the password field or the contact challenge comes next.
	var challenged bool
	markChallenged := func(*rod.Element) error {
		challenged = true
		return nil
	}
	next, err := page.Timeout(b.cfg.LoginTimeout).Race().
		Element(contactInput).Handle(markChallenged).
		Element(passwordInput).
		Do()
	if err != nil {
		return fmt.Errorf("after username: %w", err)
	}

	if challenged {
		b.log.Info("Contact challenge shown")
		if creds.Contact == "" {
			return fmt.Errorf("contact challenge: %w", errNoCredentials)
		}
		if err := submit(next, creds.Contact); err != nil {
			return fmt.Errorf("contact: %w", err)
		}
		if next, err = page.Timeout(b.cfg.LoginTimeout).Element(passwordInput); err != nil {
			return fmt.Errorf("password field: %w", err)
		}
	}

	if err := submit(next, creds.Password); err != nil {
		return fmt.Errorf("password: %w", err)
	}
	return nil
}

func submit(el *rod.Element, value string) error {
	if err := el.Input(value); err != nil {
		return err
	}
	return el.Type(input.Enter)
}

func currentURL(page *rod.Page) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// onLoginFlow reports whether url belongs to the login or onboarding flow.
func onLoginFlow(url string) bool {
	return strings.Contains(url, "login") || strings.Contains(url, "/flow")
}
