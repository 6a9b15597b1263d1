package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "file.kpkg")

	require.NoError(t, EnsureDir(path))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".kpkg"), ExpandPath("~/.kpkg"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/absolute/path", ExpandPath("/absolute/path"))
	assert.Equal(t, "relative", ExpandPath("relative"))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(filepath.Join(dir, "absent")))
	assert.False(t, FileExists(dir), "directories are not files")
}

func TestDirWritable(t *testing.T) {
	assert.True(t, DirWritable(t.TempDir()))
	assert.False(t, DirWritable(filepath.Join(t.TempDir(), "missing")))
}
