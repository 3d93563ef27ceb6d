package scheduler

import (
	"context"
	"time"

	"watchdxg/internal/logger"
	"watchdxg/internal/model"
)

// Backoff computes the delay before a retry as Base + n*Increment, where n
// is the number of retries already made. The defaults give 2s, 4s, 6s.
type Backoff struct {
	Base      time.Duration
	Increment time.Duration
}

// Delay returns the wait before retry number n+1 (n starts at 0).
func (b Backoff) Delay(n int) time.Duration {
	return b.Base + time.Duration(n)*b.Increment
}

// Result is the outcome of all attempts for one handle.
type Result struct {
	Handle  string
	Extract model.RawExtract
	// Err is a *model.ExtractionFailure when every attempt failed.
	Err      error
	Attempts int
	// Delays lists the backoff waits taken between attempts, in order.
	Delays []time.Duration
}

// OK reports whether an extract was captured.
func (r Result) OK() bool { return r.Err == nil }

// Retry runs a task up to MaxAttempts times with Backoff between attempts.
// Backoff sleeps happen outside the task, so a gate-limited task does not
// hold its slot while waiting.
type Retry struct {
	MaxAttempts int
	Backoff     Backoff
	Log         logger.Logger
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs task for handle until it succeeds or the attempts are exhausted.
func (r Retry) Do(ctx context.Context, handle string, task Task) Result {
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	maxAttempts := max(r.MaxAttempts, 1)

	res := Result{Handle: handle}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts = attempt

		extract, err := task(ctx, handle)
		if err == nil {
			res.Extract = extract
			return res
		}
		lastErr = err
		r.Log.Warn("Extraction attempt failed",
			logger.Handle(handle),
			logger.Attempt(attempt),
			logger.Int("max_attempts", maxAttempts),
			logger.Error(err),
		)
		if attempt == maxAttempts {
			break
		}

		d := r.Backoff.Delay(attempt - 1)
		res.Delays = append(res.Delays, d)
		if err := sleep(ctx, d); err != nil {
			lastErr = err
			break
		}
	}

	res.Err = &model.ExtractionFailure{Handle: handle, Attempts: res.Attempts, Err: lastErr}
	r.Log.Error("Giving up on handle",
		logger.Handle(handle),
		logger.Attempt(res.Attempts),
		logger.Error(lastErr),
	)
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
