package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "CLIENT_URL", "DATABASE_URL",
		"BUZZER_PORT", "BUZZER_CLIENT_URL", "BUZZER_DATABASE_URL", "BUZZER_BIND",
		"BUZZER_LOG_LEVEL", "BUZZER_LOG_FORMAT", "BUZZER_SWEEP_INTERVAL",
		"BUZZER_SEND_BUFFER", "BUZZER_SHUTDOWN_TIMEOUT", "BUZZER_CONFIG",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func load(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	v, err := NewViper(fs)
	require.NoError(t, err)
	return Load(v)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Bind)
	assert.Equal(t, 3001, cfg.Port)
	assert.Equal(t, "http://localhost:3000", cfg.ClientURL)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 64, cfg.SendBuffer)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "0.0.0.0:3001", cfg.Addr())
}

func TestLoad_PrefixedEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BUZZER_PORT", "4000")
	t.Setenv("BUZZER_LOG_FORMAT", "console")
	t.Setenv("BUZZER_SWEEP_INTERVAL", "30s")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
}

func TestLoad_LegacyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "5000")
	t.Setenv("CLIENT_URL", "https://quiz.example.com")
	t.Setenv("DATABASE_URL", "postgres://localhost/quizbuzzer")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "https://quiz.example.com", cfg.ClientURL)
	assert.Equal(t, "postgres://localhost/quizbuzzer", cfg.DatabaseURL)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BUZZER_PORT", "4000")

	cfg, err := load(t, "--port", "4100")
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Port)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "buzzer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 4200\nlog-level: debug\nsend-buffer: 8\n"), 0o600))

	cfg, err := load(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, 4200, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.SendBuffer)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	_, err := load(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Config{
		Port:            0,
		ClientURL:       "not a url",
		LogLevel:        "trace",
		LogFormat:       "xml",
		SendBuffer:      0,
		ShutdownTimeout: time.Second,
	}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"port", "client-url", "log-level", "log-format", "send-buffer"} {
		assert.Contains(t, err.Error(), want)
	}
}
