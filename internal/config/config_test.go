package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/ripen/internal/schedule"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return Load(fs)
}

func TestDefaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, "ripen.db", cfg.Database)
	assert.Equal(t, "localhost:8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)

	s, err := cfg.Study.Settings()
	require.NoError(t, err)
	assert.True(t, schedule.DefaultSettings().Equal(s), "got %v", s)
}

func TestPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ripen.yaml")
	yaml := `
database: from-file.db
addr: ":9000"
study:
  session_size: 5
  lengthening_factor: 3
  maximum_interval: 6 month(s)
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("RIPEN_ADDR", "127.0.0.1:9100")
	t.Setenv("RIPEN_STUDY__SESSION_SIZE", "7")
	t.Setenv("RIPEN_LOG_FORMAT", "json")

	cfg, err := load(t, "--config", path, "--session-size", "9", "--log-level", "debug")
	require.NoError(t, err)

	// file only
	assert.Equal(t, "from-file.db", cfg.Database)
	assert.InDelta(t, 3.0, cfg.Study.LengtheningFactor, 1e-9)
	// env beats file
	assert.Equal(t, "127.0.0.1:9100", cfg.Addr)
	assert.Equal(t, "json", cfg.LogFormat)
	// changed flags beat everything
	assert.Equal(t, 9, cfg.Study.SessionSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	// untouched keys keep flag defaults
	assert.Equal(t, "repos", cfg.ReposDir)

	s, err := cfg.Study.Settings()
	require.NoError(t, err)
	assert.Equal(t, 6*43830*time.Minute, s.Intervals.MaximumInterval.Duration())
}

func TestValidation(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"unknown unit", []string{"--initial-interval", "3 fortnight(s)"}},
		{"negative interval", []string{"--forgotten-interval", "-1 hour(s)"}},
		{"priority out of range", []string{"--default-priority", "11"}},
		{"zero factor", []string{"--lengthening-factor", "0"}},
		{"bad level", []string{"--log-level", "loud"}},
		{"bad address", []string{"--addr", "nowhere"}},
		{"percentage above 100", []string{"--ideal-success-percentage", "120"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(t, tc.args...)
			assert.Error(t, err)
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := load(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "warn", LogFormat: "json"}
	logger := cfg.Logger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
