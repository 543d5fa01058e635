package setup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientConfig_Missing(t *testing.T) {
	config, err := LoadClientConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, config.MCPServers)
}

func TestLoadClientConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadClientConfig(path)
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	existing := `{
  "theme": "dark",
  "mcpServers": {
    "other": {"command": "/usr/bin/other"}
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o600))

	written, err := Register(Options{
		ConfigPath: path,
		BinaryPath: "/opt/imwg/imwg-mcp-server",
		DataDir:    "/var/lib/imwg",
	})
	require.NoError(t, err)
	assert.Equal(t, path, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"dark"`, string(raw["theme"]))

	config, err := LoadClientConfig(path)
	require.NoError(t, err)
	require.Len(t, config.MCPServers, 2)
	assert.Equal(t, "/usr/bin/other", config.MCPServers["other"].Command)
	assert.Equal(t, MCPServerConfig{
		Command: "/opt/imwg/imwg-mcp-server",
		Env:     map[string]string{"IMWG_DATA_DIR": "/var/lib/imwg"},
	}, config.MCPServers[ServerName])
}

func TestRegister_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	_, err := Register(Options{ConfigPath: path, BinaryPath: "/old/imwg-mcp-server"})
	require.NoError(t, err)
	_, err = Register(Options{ConfigPath: path, BinaryPath: "/new/imwg-mcp-server"})
	require.NoError(t, err)

	config, err := LoadClientConfig(path)
	require.NoError(t, err)
	require.Len(t, config.MCPServers, 1)
	assert.Equal(t, "/new/imwg-mcp-server", config.MCPServers[ServerName].Command)
	assert.Nil(t, config.MCPServers[ServerName].Env)
}

func TestDefaultConfigPath_XDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG lookup only applies on linux")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Claude", "claude_desktop_config.json"), path)
}
