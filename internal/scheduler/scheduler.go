// Package scheduler fans extraction out over many handles under a shared
// concurrency ceiling, retrying each handle with backoff.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"watchdxg/internal/logger"
	"watchdxg/internal/metrics"
	"watchdxg/internal/model"
)

// FailureMode selects what RunAll does with handles that never produced an
// extract.
type FailureMode string

const (
	// Collect returns failures alongside successes.
	Collect FailureMode = "collect"
	// Suppress logs failures and leaves them out of the results.
	Suppress FailureMode = "suppress"
)

// ParseFailureMode validates a configured failure mode.
func ParseFailureMode(s string) (FailureMode, error) {
	switch FailureMode(s) {
	case Collect, Suppress:
		return FailureMode(s), nil
	case "":
		return Collect, nil
	default:
		return "", fmt.Errorf("unknown failure mode %q", s)
	}
}

// ErrPanic wraps a value recovered from a panicking task.
var ErrPanic = errors.New("task panicked")

// Scheduler runs a task for every handle concurrently.
type Scheduler struct {
	retry   Retry
	mode    FailureMode
	log     logger.Logger
	metrics *metrics.Metrics
}

// New returns a Scheduler. The concurrency ceiling comes from the gate the
// task was wrapped with, not from the scheduler.
func New(retry Retry, mode FailureMode, log logger.Logger, m *metrics.Metrics) *Scheduler {
	if retry.Log == nil {
		retry.Log = log
	}
	return &Scheduler{retry: retry, mode: mode, log: log, metrics: m}
}

// RunAll dispatches every handle at once and waits for all of them. Result
// order follows completion, not input. A handle's failure, including a
// panic in its task, never stops the others.
func (s *Scheduler) RunAll(ctx context.Context, handles []string, task Task) []Result {
	results := make(chan Result, len(handles))

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(handle string) {
			defer wg.Done()
			results <- s.runOne(ctx, handle, task)
		}(h)
	}
	wg.Wait()
	close(results)

	out := make([]Result, 0, len(handles))
	for res := range results {
		if res.OK() {
			s.metrics.ExtractionsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
			out = append(out, res)
			continue
		}
		s.metrics.ExtractionsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		if s.mode == Suppress {
			continue
		}
		out = append(out, res)
	}
	return out
}

func (s *Scheduler) runOne(ctx context.Context, handle string, task Task) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrPanic, r)
			s.log.Error("Extraction worker panicked",
				logger.String("func", "scheduler.RunAll"),
				logger.Handle(handle),
				logger.Error(err),
				logger.String("stack", string(debug.Stack())),
			)
			res = Result{
				Handle: handle,
				Err:    &model.ExtractionFailure{Handle: handle, Attempts: res.Attempts, Err: err},
			}
		}
	}()
	return s.retry.Do(ctx, handle, s.guard(task))
}

// guard turns a panic inside one attempt into that attempt's error, so it is
// retried and counted like any other failure.
func (s *Scheduler) guard(task Task) Task {
	return func(ctx context.Context, handle string) (extract model.RawExtract, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrPanic, r)
				s.log.Error("Extraction task panicked",
					logger.String("func", "fetch"),
					logger.Handle(handle),
					logger.Error(err),
					logger.String("stack", string(debug.Stack())),
				)
			}
		}()
		return task(ctx, handle)
	}
}

// Instrument wraps task to record attempt duration, outcome and the
// in-flight gauge. Wrap it inside Gate.Limit so the gauge counts admitted
// attempts only.
func Instrument(task Task, m *metrics.Metrics) Task {
	return func(ctx context.Context, handle string) (model.RawExtract, error) {
		m.PagesInFlight.Inc()
		defer m.PagesInFlight.Dec()

		start := time.Now()
		extract, err := task(ctx, handle)
		m.ObserveAttempt(time.Since(start), err)
		return extract, err
	}
}
