package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ".queryscope", cfg.IndexDir)
	assert.Equal(t, 10, cfg.TopK)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".queryscope.yaml")
	data := "index_dir: /tmp/idx\nignore_dirs: [build, dist]\nextensions: [sql]\ntop_k: 25\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/idx", cfg.IndexDir)
	assert.Equal(t, []string{"build", "dist"}, cfg.IgnoreDirs)
	assert.Equal(t, []string{"sql"}, cfg.Extensions)
	assert.Equal(t, 25, cfg.TopK)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".queryscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte("top_k: [not a number"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
