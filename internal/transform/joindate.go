package transform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/goodsign/monday"
)

// ErrNoJoinDate is returned when no month and year can be read from a join
// date label.
var ErrNoJoinDate = errors.New("no month/year in join date")

// DefaultLocales are tried, in order, after English month names.
var DefaultLocales = []monday.Locale{
	monday.LocaleFrFR,
	monday.LocaleDeDE,
	monday.LocaleEsES,
	monday.LocaleItIT,
	monday.LocalePtBR,
	monday.LocaleNlNL,
}

// ParseLocales converts locale names such as "fr_FR" into monday locales,
// rejecting names monday does not know.
func ParseLocales(names []string) ([]monday.Locale, error) {
	known := make(map[monday.Locale]bool)
	for _, l := range monday.ListLocales() {
		known[l] = true
	}
	out := make([]monday.Locale, 0, len(names))
	for _, n := range names {
		l := monday.Locale(n)
		if !known[l] {
			return nil, fmt.Errorf("unknown locale %q", n)
		}
		out = append(out, l)
	}
	return out, nil
}

// ParseJoinDate reads a profile's "Joined March 2019" label in any of the
// given locales. The last four-digit token is the year and the nearest
// token before it that names a month is the month, so both "Joined March
// 2019" and "Se unió en marzo de 2019" resolve. The result is the first day
// of that month in UTC.
func ParseJoinDate(label string, locales []monday.Locale) (time.Time, error) {
	tokens := strings.Fields(label)

	yearAt := -1
	for i := len(tokens) - 1; i >= 0; i-- {
		if yearPattern.MatchString(tokens[i]) {
			yearAt = i
			break
		}
	}
	if yearAt < 0 {
		return time.Time{}, fmt.Errorf("%q: %w", label, ErrNoJoinDate)
	}
	year, err := strconv.Atoi(yearPattern.FindString(tokens[yearAt]))
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", label, err)
	}

	for i := yearAt - 1; i >= 0; i-- {
		if m, ok := parseMonth(tokens[i], locales); ok {
			return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q: %w", label, ErrNoJoinDate)
}

func parseMonth(token string, locales []monday.Locale) (time.Month, bool) {
	token = strings.TrimFunc(token, func(r rune) bool {
		return unicode.IsPunct(r)
	})
	if token == "" {
		return 0, false
	}

	for _, layout := range []string{"January", "Jan"} {
		if t, err := time.Parse(layout, token); err == nil {
			return t.Month(), true
		}
	}

	candidates := []string{token, strings.ToLower(token), capitalize(token)}
	for _, l := range locales {
		for _, c := range candidates {
			t, err := monday.ParseInLocation("January 2006", c+" 2000", time.UTC, l)
			if err == nil {
				return t.Month(), true
			}
		}
	}
	return 0, false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
