package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteEnvVars(t *testing.T) {
	require := assert.New(t)

	os.Setenv("TSP_TEST_ADDR", "10.0.0.1:8420")
	defer os.Unsetenv("TSP_TEST_ADDR")

	require.Equal("10.0.0.1:8420", SubstituteEnvVars("${TSP_TEST_ADDR}"))
	require.Equal("fallback", SubstituteEnvVars("${TSP_TEST_UNSET:fallback}"))
	require.Equal("", SubstituteEnvVars("${TSP_TEST_UNSET}"))
	require.Equal("no vars here", SubstituteEnvVars("no vars here"))
}

func TestSubstituteEnvVarsInConfig(t *testing.T) {
	os.Setenv("TSP_TEST_VID_PATH", "/etc/tsp/node.json")
	defer os.Unsetenv("TSP_TEST_VID_PATH")

	cfg := &Config{Identity: IdentityConfig{OwnedVidPath: "${TSP_TEST_VID_PATH}"}}
	SubstituteEnvVarsInConfig(cfg)

	assert.Equal(t, "/etc/tsp/node.json", cfg.Identity.OwnedVidPath)
}

func TestSubstituteEnvVarsInConfig_NilIsNoop(t *testing.T) {
	SubstituteEnvVarsInConfig(nil)
}

func TestGetEnvironment(t *testing.T) {
	os.Unsetenv("TSP_ENV")
	os.Unsetenv("ENVIRONMENT")
	assert.Equal(t, "development", GetEnvironment())

	os.Setenv("TSP_ENV", "Production")
	defer os.Unsetenv("TSP_ENV")
	assert.Equal(t, "production", GetEnvironment())
	assert.True(t, IsProduction())
	assert.False(t, IsDevelopment())
}
