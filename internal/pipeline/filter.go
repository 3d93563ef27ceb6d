package pipeline

import (
	"context"
	"fmt"
)

// FilterPolicy decides how FilterUnknown treats a known handle.
type FilterPolicy string

const (
	// Boundary stops at the first known handle. Follower lists are shown
	// newest first, so everything after it is assumed processed already.
	Boundary FilterPolicy = "boundary"
	// Difference skips known handles and keeps scanning.
	Difference FilterPolicy = "difference"
)

// ParseFilterPolicy validates a configured policy. Empty means Boundary.
func ParseFilterPolicy(s string) (FilterPolicy, error) {
	switch FilterPolicy(s) {
	case Boundary, Difference:
		return FilterPolicy(s), nil
	case "":
		return Boundary, nil
	default:
		return "", fmt.Errorf("unknown filter policy %q", s)
	}
}

// ExistsFunc reports whether a handle is already stored.
type ExistsFunc func(ctx context.Context, handle string) (bool, error)

// FilterUnknown returns the handles not yet stored, in input order. Lookups
// run one at a time; under Boundary no handle past the first known one is
// looked up.
func FilterUnknown(ctx context.Context, handles []string, exists ExistsFunc, policy FilterPolicy) ([]string, error) {
	unknown := make([]string, 0, len(handles))
	for _, h := range handles {
		known, err := exists(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("filter known handles: %w", err)
		}
		if !known {
			unknown = append(unknown, h)
			continue
		}
		if policy != Difference {
			break
		}
	}
	return unknown, nil
}
