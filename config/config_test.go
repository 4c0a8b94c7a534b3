package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "node.yaml")

	content := `environment: production
identity:
  owned_vid_path: alice.json
listen:
  scheme: tcp
  addr: 0.0.0.0:8420
peers:
  - vid: did:web:bob.example:endpoint
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "alice.json", cfg.Identity.OwnedVidPath)
	assert.Equal(t, "tcp", cfg.Listen.Scheme)
	assert.Equal(t, "0.0.0.0:8420", cfg.Listen.Addr)
	require.Len(t, cfg.Peers, 1)
	assert.Equal(t, "did:web:bob.example:endpoint", cfg.Peers[0].Vid)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "minimal.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("environment: staging\n"), 0o644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "vid.json", cfg.Identity.OwnedVidPath)
	assert.Equal(t, "tcp", cfg.Listen.Scheme)
	assert.Equal(t, ":8420", cfg.Listen.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":9420", cfg.Metrics.Addr)
}

func TestSaveAndLoadRoundTrip_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "node.json")

	cfg := &Config{
		Environment: "test",
		Identity:    IdentityConfig{OwnedVidPath: "node.json"},
		Listen:      ListenConfig{Scheme: "https", Addr: ":9000"},
		Peers:       []PeerConfig{{Vid: "did:web:carol.example:endpoint"}},
	}
	setDefaults(cfg)

	require.NoError(t, SaveToFile(cfg, configPath))

	loaded, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Environment, loaded.Environment)
	assert.Equal(t, cfg.Listen, loaded.Listen)
	assert.Equal(t, cfg.Peers, loaded.Peers)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate_RejectsUnknownScheme(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.Listen.Scheme = "carrier-pigeon"

	issues := Validate(cfg)
	require.NotEmpty(t, issues)
	found := false
	for _, issue := range issues {
		if issue.Field == "listen.scheme" {
			found = true
			assert.Equal(t, "error", issue.Level)
		}
	}
	assert.True(t, found)
}

func TestValidate_RejectsEmptyPeerVid(t *testing.T) {
	cfg := &Config{Peers: []PeerConfig{{Endpoint: "https://example.com"}}}
	setDefaults(cfg)

	issues := Validate(cfg)
	var found bool
	for _, issue := range issues {
		if issue.Field == "peers[0].vid" {
			found = true
		}
	}
	assert.True(t, found)
}
