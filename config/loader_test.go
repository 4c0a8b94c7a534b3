package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FallsBackToDefaultsWithoutConfigDir(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigDir: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	assert.Equal(t, "tcp", cfg.Listen.Scheme)
}

func TestLoad_PicksEnvironmentSpecificFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "staging.yaml"), []byte("logging:\n  level: debug\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte("logging:\n  level: error\n"), 0o644))

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "staging"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "staging", cfg.Environment)
}

func TestLoad_EnvironmentOverrideWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte("listen:\n  addr: \":1\"\n"), 0o644))

	os.Setenv("TSP_LISTEN_ADDR", ":9999")
	defer os.Unsetenv("TSP_LISTEN_ADDR")

	cfg, err := Load(LoaderOptions{ConfigDir: dir})
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Listen.Addr)
}

func TestLoad_ValidationErrorBlocksLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte("listen:\n  scheme: carrier-pigeon\n"), 0o644))

	_, err := Load(LoaderOptions{ConfigDir: dir})
	require.Error(t, err)
}

func TestLoad_SkipValidationAllowsBadScheme(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte("listen:\n  scheme: carrier-pigeon\n"), 0o644))

	cfg, err := Load(LoaderOptions{ConfigDir: dir, SkipValidation: true})
	require.NoError(t, err)
	assert.Equal(t, "carrier-pigeon", cfg.Listen.Scheme)
}

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte("listen:\n  scheme: carrier-pigeon\n"), 0o644))

	assert.Panics(t, func() {
		MustLoad(LoaderOptions{ConfigDir: dir})
	})
}
