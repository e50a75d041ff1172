package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveDirSaveAndOpen(t *testing.T) {
	dir, err := NewArchiveDir(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, dir.Save("sessions/sess-1/100.csv", []byte("a,b\n1,2\n")))

	file, err := dir.Open("sessions/sess-1/100.csv")
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestArchiveDirRejectsEscapingPaths(t *testing.T) {
	dir, err := NewArchiveDir(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, dir.Save("../outside.csv", []byte("x")))
	assert.Error(t, dir.Save("/etc/passwd", []byte("x")))
	_, err = dir.Open("a/../../outside.csv")
	assert.Error(t, err)
}

func TestArchiveDirRemoveOlderThan(t *testing.T) {
	root := t.TempDir()
	dir, err := NewArchiveDir(root)
	require.NoError(t, err)

	require.NoError(t, dir.Save("sessions/old/1.csv", []byte("old")))
	require.NoError(t, dir.Save("sessions/new/2.csv", []byte("new")))

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "sessions/old/1.csv"), stale, stale))

	removed, err := dir.RemoveOlderThan(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = dir.Open("sessions/old/1.csv")
	assert.Error(t, err)
	file, err := dir.Open("sessions/new/2.csv")
	require.NoError(t, err)
	file.Close()
}
