package sifzz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadUserConfigCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadUserConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultUserConfig(), cfg)

	require.FileExists(t, path)
	again, err := LoadUserConfig(path)
	require.NoError(t, err)
	want := DefaultUserConfig()
	assert.Equal(t, want.ModuleDir, again.ModuleDir)
	assert.Equal(t, want.InstallURL, again.InstallURL)
	assert.Equal(t, want.Extensions, again.Extensions)
	assert.Equal(t, want.HTTPTimeout, again.HTTPTimeout)
	assert.Equal(t, want.TermBackground, again.TermBackground)
	assert.Empty(t, again.DebugCategories)
}

func TestLoadUserConfigEmptyPath(t *testing.T) {
	cfg, err := LoadUserConfig("")
	require.NoError(t, err)
	assert.Equal(t, "modules", cfg.ModuleDir)
	assert.Equal(t, []string{"math", "file", "web", "sound"}, cfg.Extensions)
}

func TestLoadUserConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `debug: true
log_format: JSON
debug_categories: [math, flow]
module_dir: /tmp/packs
extensions: [math]
http_timeout: 2.5
term_background: Light
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadUserConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"math", "flow"}, cfg.DebugCategories)
	assert.Equal(t, "/tmp/packs", cfg.ModuleDir)
	assert.Equal(t, []string{"math"}, cfg.Extensions)
	assert.Equal(t, 2.5, cfg.HTTPTimeout)
	assert.Equal(t, "light", cfg.TermBackground)
	assert.Equal(t, DefaultInstallURL, cfg.InstallURL, "unset keys keep their defaults")

	engine := cfg.EngineConfig()
	assert.True(t, engine.Debug)
	assert.Equal(t, "json", engine.LogFormat)
	assert.Equal(t, []LogCategory{CatMath, CatFlow}, engine.DebugCategories)
}

func TestLoadUserConfigRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"log format":   "log_format: xml\n",
		"background":   "term_background: purple\n",
		"category":     "debug_categories: [nope]\n",
		"timeout":      "http_timeout: -1\n",
		"invalid yaml": "debug: [\n",
		"wrong type":   "extensions: 12\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := LoadUserConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestParseCategory(t *testing.T) {
	cat, ok := ParseCategory(" Math ")
	assert.True(t, ok)
	assert.Equal(t, CatMath, cat)

	_, ok = ParseCategory("bogus")
	assert.False(t, ok)
}
