// Package normalize converts display-formatted page text into values fit for
// storage.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrEmpty is returned by Count when nothing numeric is left to parse.
var ErrEmpty = errors.New("empty count")

// ErrRange is returned by Count when the value does not fit in an int64.
var ErrRange = errors.New("count out of range")

// Count parses an abbreviated display count such as "847", "1.2k", "1,2 k",
// "3M" or "12,500" into an integer.
//
// With a k/K or M suffix the single ',' or '.' is a decimal separator and the
// result is floored after the multiplier is applied. Without a suffix the
// value is an integer display and ',', '.' and whitespace are grouping
// separators.
func Count(display string) (int64, error) {
	s := stripSpace(display)

	var multiplier int64 = 1
	if strings.ContainsAny(s, "kK") {
		multiplier = 1_000
		s = strings.NewReplacer("k", "", "K", "").Replace(s)
	}
	if strings.Contains(s, "M") {
		multiplier = 1_000_000
		s = strings.ReplaceAll(s, "M", "")
	}
	if s == "" {
		return 0, fmt.Errorf("parse count %q: %w", display, ErrEmpty)
	}

	if multiplier == 1 {
		s = strings.NewReplacer(",", "", ".", "").Replace(s)
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse count %q: %w", display, err)
		}
		return n, nil
	}

	s = strings.ReplaceAll(s, ",", ".")
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", display, err)
	}
	if w > math.MaxInt64/multiplier {
		return 0, fmt.Errorf("parse count %q: %w", display, ErrRange)
	}
	n := w * multiplier
	if frac == "" {
		return n, nil
	}

	// Digits past the multiplier's precision are floored away.
	digits := len(strconv.FormatInt(multiplier, 10)) - 1
	if len(frac) > digits {
		if strings.Trim(frac[digits:], "0123456789") != "" {
			return 0, fmt.Errorf("parse count %q: %w", display, strconv.ErrSyntax)
		}
		frac = frac[:digits]
	}

	// Integer arithmetic keeps "4.1k" at 4100 instead of 4099.
	f, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", display, err)
	}
	for i := 0; i < digits-len(frac); i++ {
		f *= 10
	}
	if n > math.MaxInt64-int64(f) {
		return 0, fmt.Errorf("parse count %q: %w", display, ErrRange)
	}
	return n + int64(f), nil
}

// CountOrZero is Count for counters where an unreadable value is reported
// by the caller and stored as 0.
func CountOrZero(display string) int64 {
	n, err := Count(display)
	if err != nil {
		return 0
	}
	return n
}

// CleanStatText trims whitespace (including non-breaking spaces) and the "·"
// separators the page renders around inline metadata, and collapses inner
// runs of whitespace.
func CleanStatText(s string) string {
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '·'
	})
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
