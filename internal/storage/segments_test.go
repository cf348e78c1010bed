package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemoveAllSegmentsDeletesEveryBaseFile(t *testing.T) {
	dir := t.TempDir()
	fs := LocalFileSet{Dir: dir, Base: "idx"}
	sm := NewStorageManager()

	for segNo := int32(0); segNo < 3; segNo++ {
		pageID := uint32(segNo)
		pg, err := sm.LoadPage(fs, pageID)
		require.NoError(t, err)
		require.NoError(t, sm.SavePage(fs, pageID, pg))
	}
	_, err := os.Create(filepath.Join(dir, "idx.2"))
	require.NoError(t, err)

	require.NoError(t, RemoveAllSegments(fs))

	_, err = os.Stat(filepath.Join(dir, "idx"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "idx.2"))
	require.True(t, os.IsNotExist(err))
}

func TestRemoveAllSegmentsOnMissingDirIsANoop(t *testing.T) {
	fs := LocalFileSet{Dir: filepath.Join(t.TempDir(), "does-not-exist"), Base: "idx"}
	require.NoError(t, RemoveAllSegments(fs))
}
