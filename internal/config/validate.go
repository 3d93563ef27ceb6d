package config

import (
	"errors"
	"fmt"

	"watchdxg/internal/pipeline"
	"watchdxg/internal/scheduler"
	"watchdxg/internal/transform"
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks the configuration after defaults are applied. All
// problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, msg string) {
		errs = append(errs, &ValidationError{Field: field, Message: msg})
	}

	if c.Account.Handle == "" {
		add("account.handle", "is required (or set X_USERNAME)")
	}
	if c.Runtime.MaxParallel < 1 {
		add("runtime.max_parallel", "must be at least 1")
	}
	if c.Runtime.MaxRetries < 1 {
		add("runtime.max_retries", "must be at least 1")
	}
	if c.Runtime.BackoffBase < 0 || c.Runtime.BackoffIncrement < 0 {
		add("runtime.backoff_base", "backoff durations must not be negative")
	}
	if _, err := pipeline.ParseFilterPolicy(c.Runtime.FilterPolicy); err != nil {
		add("runtime.filter_policy", err.Error())
	}
	if _, err := scheduler.ParseFailureMode(c.Runtime.FailureMode); err != nil {
		add("runtime.failure_mode", err.Error())
	}
	if c.Browser.SettleMin < 0 || c.Browser.SettleMin > c.Browser.SettleMax {
		add("browser.settle_min", "must be between 0 and browser.settle_max")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		add("database.port", "must be between 1 and 65535")
	}
	if _, err := transform.ParseLocales(c.Transform.Locales); err != nil {
		add("transform.locales", err.Error())
	}

	return errors.Join(errs...)
}
