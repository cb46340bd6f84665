package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepDirectoryRemovesOnlyStaleFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	stale := filepath.Join(dir, "old.png")
	fresh := filepath.Join(dir, "new.png")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(fresh, []byte("y"), 0644))
	require.NoError(t, os.Chtimes(stale, now.Add(-36*time.Hour), now.Add(-36*time.Hour)))

	removed, err := SweepDirectory(dir, MaxArtifactAge, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestSweepDirectorySkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	sub := filepath.Join(dir, "keep")
	require.NoError(t, os.Mkdir(sub, 0755))
	require.NoError(t, os.Chtimes(sub, now.Add(-48*time.Hour), now.Add(-48*time.Hour)))

	removed, err := SweepDirectory(dir, MaxArtifactAge, now)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	_, err = os.Stat(sub)
	assert.NoError(t, err)
}

func TestSweepDirectoryMissingDirIsNotAnError(t *testing.T) {
	removed, err := SweepDirectory(filepath.Join(t.TempDir(), "nope"), MaxArtifactAge, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 0, removed)
}
