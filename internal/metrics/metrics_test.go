package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAttempt(t *testing.T) {
	m := New()

	m.ObserveAttempt(time.Second, nil)
	m.ObserveAttempt(2*time.Second, errors.New("timeout"))
	m.ObserveAttempt(time.Second, errors.New("timeout"))

	assert.InDelta(t, 1, testutil.ToFloat64(m.AttemptsTotal.WithLabelValues(OutcomeSuccess)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.AttemptsTotal.WithLabelValues(OutcomeFailure)), 0)
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.PersistenceErrors.Inc()

	assert.InDelta(t, 1, testutil.ToFloat64(a.PersistenceErrors), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.PersistenceErrors), 0)
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.PostsTotal.WithLabelValues(OutcomeInserted).Add(3)
	m.FinishRun(time.Now().Add(-time.Minute))

	path := filepath.Join(t.TempDir(), "watchdxg.prom")
	require.NoError(t, m.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.True(t, strings.Contains(out, `watchdxg_store_posts_total{outcome="inserted"} 3`), out)
	assert.Contains(t, out, "watchdxg_last_run_duration_seconds")
}
