package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageManagerLoadSaveRoundTrip(t *testing.T) {
	fs := LocalFileSet{Dir: t.TempDir(), Base: "segment"}
	sm := NewStorageManager()

	pg, err := sm.LoadPage(fs, 0)
	require.NoError(t, err)
	require.NotNil(t, pg)
	assert.True(t, pg.IsUninitialized() || pg.Tag() == NodeUnused)

	pg.SetTag(NodeLeaf)
	require.NoError(t, pg.InsertAt(0, []byte("payload-bytes-1")))
	require.NoError(t, sm.SavePage(fs, 0, pg))

	reloaded, err := sm.LoadPage(fs, 0)
	require.NoError(t, err)
	assert.Equal(t, NodeLeaf, reloaded.Tag())
	assert.Equal(t, 1, reloaded.Count())

	tup, err := reloaded.ReadAt(0)
	require.NoError(t, err)
	assert.Equal(t, "payload-bytes-1", string(tup))
}

func TestStorageManagerCountPages(t *testing.T) {
	fs := LocalFileSet{Dir: t.TempDir(), Base: "segment"}
	sm := NewStorageManager()

	for id := uint32(0); id < 3; id++ {
		pg, err := sm.LoadPage(fs, id)
		require.NoError(t, err)
		require.NoError(t, sm.SavePage(fs, id, pg))
	}

	total, err := sm.CountPages(fs)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), total)
}
