package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"ENV_FILE", "X_ACCOUNT", "X_USERNAME", "X_PASSWORD", "X_CONTACT",
	"X_BASE_URL", "X_PROXY", "FFPROFILEPATH", "MAX_PARALLEL", "MAX_RETRIES",
	"PG_HOST", "PG_PORT", "PG_USER", "PG_PASSWORD", "PG_DATABASE", "PG_SSLMODE",
	"LOG_DEBUG", "LOG_JSON", "X_LOCALES", "METRICS_TEXTFILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envVars {
		t.Setenv(name, "")
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("X_USERNAME", "harvester")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "harvester", cfg.Account.Handle)
	assert.Equal(t, DefaultBaseURL, cfg.Browser.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavTimeout)
	assert.Equal(t, 5*time.Second, cfg.Browser.SettleMin)
	assert.Equal(t, 6*time.Second, cfg.Browser.SettleMax)
	assert.Equal(t, 3, cfg.Runtime.MaxParallel)
	assert.Equal(t, 3, cfg.Runtime.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Runtime.BackoffBase)
	assert.Equal(t, "boundary", cfg.Runtime.FilterPolicy)
	assert.Equal(t, "collect", cfg.Runtime.FailureMode)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
}

func TestLoad_YAMLValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, `
account:
  handle: watched
browser:
  headed: true
  settle_min: 1s
  settle_max: 2s
runtime:
  max_parallel: 5
  filter_policy: difference
  failure_mode: suppress
  skip_known: true
database:
  host: db.internal
  port: 6543
transform:
  locales: [fr_FR, de_DE]
`))
	require.NoError(t, err)

	assert.Equal(t, "watched", cfg.Account.Handle)
	assert.True(t, cfg.Browser.Headed)
	assert.Equal(t, time.Second, cfg.Browser.SettleMin)
	assert.Equal(t, 5, cfg.Runtime.MaxParallel)
	assert.Equal(t, "difference", cfg.Runtime.FilterPolicy)
	assert.Equal(t, "suppress", cfg.Runtime.FailureMode)
	assert.True(t, cfg.Runtime.SkipKnown)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, []string{"fr_FR", "de_DE"}, cfg.Transform.Locales)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("X_ACCOUNT", "from_env")
	t.Setenv("X_PASSWORD", "s3cret")
	t.Setenv("PG_HOST", "pg.example")
	t.Setenv("PG_PORT", "5433")
	t.Setenv("PG_PASSWORD", "pw")
	t.Setenv("FFPROFILEPATH", "/tmp/profile")
	t.Setenv("LOG_DEBUG", "yes")
	t.Setenv("X_LOCALES", "fr_FR, es_ES")

	cfg, err := Load(writeConfig(t, "account:\n  handle: from_yaml\ndatabase:\n  host: yaml-host\n"))
	require.NoError(t, err)

	assert.Equal(t, "from_env", cfg.Account.Handle)
	assert.Equal(t, "s3cret", cfg.Account.Password)
	assert.Equal(t, "pg.example", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "pw", cfg.Database.Password)
	assert.Equal(t, "/tmp/profile", cfg.Browser.ProfileDir)
	assert.True(t, cfg.Logs.Debug)
	assert.Equal(t, []string{"fr_FR", "es_ES"}, cfg.Transform.Locales)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("X_USERNAME=dotenv_user\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)
	// godotenv leaves variables that are already present alone, even empty ones.
	require.NoError(t, os.Unsetenv("X_USERNAME"))

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "dotenv_user", cfg.Account.Handle)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "runtime: [unterminated\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestValidate_ReportsEveryField(t *testing.T) {
	cfg := &Config{}
	cfg.Runtime.FilterPolicy = "sometimes"
	cfg.Runtime.FailureMode = "explode"
	cfg.Transform.Locales = []string{"xx_XX"}
	cfg.SetDefaults()
	cfg.Browser.SettleMin = 10 * time.Second

	err := cfg.Validate()
	require.Error(t, err)

	var fields []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var ve *ValidationError
		require.True(t, errors.As(e, &ve))
		fields = append(fields, ve.Field)
	}
	assert.ElementsMatch(t, []string{
		"account.handle",
		"runtime.filter_policy",
		"runtime.failure_mode",
		"browser.settle_min",
		"transform.locales",
	}, fields)
}

func TestSetDefaults_SettleMaxFollowsMin(t *testing.T) {
	tests := []struct {
		name     string
		min, max time.Duration
		wantMin  time.Duration
		wantMax  time.Duration
	}{
		{"both unset", 0, 0, DefaultSettleMin, DefaultSettleMax},
		{"min above default max", 7 * time.Second, 0, 7 * time.Second, 7 * time.Second},
		{"min below default max", time.Second, 0, time.Second, DefaultSettleMax},
		{"only max", 0, 3 * time.Second, 0, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Account: AccountConfig{Handle: "someone"}}
			cfg.Browser.SettleMin, cfg.Browser.SettleMax = tt.min, tt.max
			cfg.SetDefaults()

			assert.Equal(t, tt.wantMin, cfg.Browser.SettleMin)
			assert.Equal(t, tt.wantMax, cfg.Browser.SettleMax)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := &Config{Account: AccountConfig{Handle: "someone"}}
	cfg.SetDefaults()
	assert.NoError(t, cfg.Validate())
}

func TestSetFieldFromString_IgnoresGarbage(t *testing.T) {
	clearEnv(t)
	t.Setenv("X_USERNAME", "u")
	t.Setenv("MAX_PARALLEL", "many")

	cfg, err := Load(writeConfig(t, "runtime:\n  max_parallel: 4\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Runtime.MaxParallel)
}
