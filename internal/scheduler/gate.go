package scheduler

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"watchdxg/internal/model"
)

// Task performs one extraction attempt for a handle.
type Task func(ctx context.Context, handle string) (model.RawExtract, error)

// Gate is the process-wide admission gate for extraction attempts. Build
// one and share it; every task wrapped by Limit counts against the same
// ceiling, whichever scheduler runs it.
type Gate struct {
	sem  *semaphore.Weighted
	size int
}

// NewGate returns a gate admitting at most n concurrent attempts.
func NewGate(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(n)), size: n}
}

// Size is the gate's ceiling.
func (g *Gate) Size() int { return g.size }

// Limit wraps task so each call holds one gate slot for its duration. The
// slot is released on every return path, panics included.
func (g *Gate) Limit(task Task) Task {
	return func(ctx context.Context, handle string) (model.RawExtract, error) {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return model.RawExtract{}, fmt.Errorf("acquire extraction slot: %w", err)
		}
		defer g.sem.Release(1)
		return task(ctx, handle)
	}
}
