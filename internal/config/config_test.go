package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lazysync/internal/entity"
	"github.com/roach88/lazysync/internal/store"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, entity.ResolveLate, cfg.Policy())
	assert.Equal(t, store.DriverCGO, cfg.Database.Driver)
	assert.Equal(t, 100, cfg.Resolve.MaxIterations)
	assert.Equal(t, 64, cfg.RuleSet().MaxDepth())
	assert.True(t, cfg.RuleSet().DetectRecursion())
}

func TestDecode(t *testing.T) {
	cfg := Default()
	err := cfg.Decode([]byte(`
database:
  path: /var/lib/lazysync.db
  driver: sqlite
resolve:
  policy: resolve-early
  max_iterations: 0
heartbeat:
  ttl: 2m
errors:
  deduplicate: false
log:
  level: debug
  format: json
serialize:
  max_depth: 5
  friendly_links: true
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/lazysync.db", cfg.Database.Path)
	assert.Equal(t, store.DriverPureGo, cfg.Database.Driver)
	assert.Equal(t, entity.ResolveEarly, cfg.Policy())
	assert.Equal(t, 0, cfg.Resolve.MaxIterations)
	assert.Equal(t, 2*time.Minute, cfg.Heartbeat.TTL)
	assert.False(t, cfg.Errors.Deduplicate)
	assert.True(t, cfg.Errors.Mirror, "unset keys keep their defaults")
	assert.Equal(t, 5, cfg.RuleSet().MaxDepth())
	assert.True(t, cfg.RuleSet().FriendlyLinks())
}

func TestDecode_UnknownKey(t *testing.T) {
	err := Default().Decode([]byte("databse:\n  path: x\n"))
	assert.Error(t, err)
}

func TestDecode_Empty(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Decode(nil))
	assert.Equal(t, Default(), cfg)
}

func TestValidate_ReportsEverything(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "postgres"
	cfg.Resolve.Policy = "eventually"
	cfg.Resolve.MaxIterations = -1
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	cfg.Serialize.MaxDepth = -3

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"database.driver", "resolve.policy", "resolve.max_iterations", "log.level", "log.format", "serialize.max_depth"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvDatabase: "/tmp/env.db",
		EnvDriver:   "sqlite",
		EnvLogLevel: "",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Log.Level, "empty values are ignored")
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvDatabase, "")
	t.Setenv(EnvDriver, "")
	t.Setenv(EnvLogLevel, "warn")

	path := filepath.Join(t.TempDir(), "lazysync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resolve:\n  policy: do-not-resolve\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, entity.DoNotResolve, cfg.Policy())
	assert.Equal(t, "warn", cfg.Log.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("log:\n  format: xml\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "log.format")
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "provider", "memory.Provider")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"provider":"memory.Provider"`)
}

func TestOptions(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.StoreOptions(), 1)
	assert.Len(t, cfg.RegistryOptions(nil), 3)
	assert.Len(t, cfg.QueueOptions(nil), 2)
}
