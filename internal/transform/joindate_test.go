package transform

import (
	"testing"
	"time"

	"github.com/goodsign/monday"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJoinDate(t *testing.T) {
	tests := []struct {
		label string
		want  time.Month
		year  int
	}{
		{"Joined March 2019", time.March, 2019},
		{"Joined Sep 2010", time.September, 2010},
		{"A rejoint X en mars 2019", time.March, 2019},
		{"Seit März 2021 bei X", time.March, 2021},
		{"Se unió en marzo de 2019", time.March, 2019},
		{"Joined December 2006", time.December, 2006},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseJoinDate(tt.label, DefaultLocales)
			require.NoError(t, err)
			assert.Equal(t, time.Date(tt.year, tt.want, 1, 0, 0, 0, 0, time.UTC), got)
		})
	}
}

func TestParseJoinDate_Errors(t *testing.T) {
	for _, label := range []string{"", "Joined recently", "Joined 2019", "Beigetreten Foo 2019"} {
		_, err := ParseJoinDate(label, DefaultLocales)
		assert.ErrorIs(t, err, ErrNoJoinDate, label)
	}
}

func TestParseJoinDate_EnglishOnly(t *testing.T) {
	_, err := ParseJoinDate("A rejoint X en mars 2019", []monday.Locale{})
	assert.ErrorIs(t, err, ErrNoJoinDate)
}

func TestParseLocales(t *testing.T) {
	locales, err := ParseLocales([]string{"fr_FR", "de_DE"})
	require.NoError(t, err)
	assert.Equal(t, []monday.Locale{monday.LocaleFrFR, monday.LocaleDeDE}, locales)

	_, err = ParseLocales([]string{"xx_YY"})
	assert.Error(t, err)
}
