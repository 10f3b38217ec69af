// Package testutils builds on-disk sites for tests that need real files.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/markup/internal/config"
)

// CreateTempProject creates a temporary site with the standard directory
// layout and the given files, keyed by slash-separated relative path.
func CreateTempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	tempDir := t.TempDir()

	for _, dir := range []string{"components", "pages", "static"} {
		require.NoError(t, os.MkdirAll(filepath.Join(tempDir, dir), 0o755))
	}
	WriteFiles(t, tempDir, files)
	return tempDir
}

// WriteFiles writes files below root, creating directories as needed.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// CreateTestComponent writes components/<name>.html and returns its path.
func CreateTestComponent(t *testing.T, projectDir, name, content string) string {
	t.Helper()
	path := filepath.Join(projectDir, "components", name+".html")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// CreateTestConfig returns a configuration rooted at projectDir that
// listens on a free loopback port, without favicon, watching or live reload.
func CreateTestConfig(projectDir string) *config.Config {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Templates.Root = projectDir
	cfg.Static.Dir = filepath.Join(projectDir, "static")
	cfg.Static.Favicon = ""
	cfg.Static.Stylesheets = nil
	cfg.Development.LiveReload = false
	cfg.Development.Watch = false
	cfg.Development.Debounce = 20 * time.Millisecond
	return cfg
}
