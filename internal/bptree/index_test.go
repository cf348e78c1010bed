package bptree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adbkit/bptreefile/internal/storage"
)

func newIndexPage(t *testing.T, pageID uint32, leftLink int32) IndexNode {
	t.Helper()
	page, err := storage.NewPage(make([]byte, storage.PageSize), pageID)
	require.NoError(t, err)
	return InitIndex(page, pageID, leftLink)
}

func TestIndexInsertKeepsAscendingOrder(t *testing.T) {
	idx := newIndexPage(t, 1, 100)
	require.NoError(t, idx.Insert(30, 2))
	require.NoError(t, idx.Insert(10, 3))
	require.NoError(t, idx.Insert(20, 4))

	require.Equal(t, int32(100), idx.LeftLink())
	keys := []int32{10, 20, 30}
	for i, want := range keys {
		e, err := idx.EntryAt(i)
		require.NoError(t, err)
		require.Equal(t, want, e.Key)
	}
}

func TestIndexSearchReturnsGreatestKeyAtMost(t *testing.T) {
	idx := newIndexPage(t, 1, 0)
	require.NoError(t, idx.Insert(10, 1))
	require.NoError(t, idx.Insert(20, 2))
	require.NoError(t, idx.Insert(30, 3))

	child, key, ok := idx.Search(25)
	require.True(t, ok)
	require.Equal(t, int32(20), key)
	require.Equal(t, int32(2), child)

	_, _, ok = idx.Search(5)
	require.False(t, ok)
}

func TestIndexLeftSearchReturnsLeastKeyAbove(t *testing.T) {
	idx := newIndexPage(t, 1, 0)
	require.NoError(t, idx.Insert(10, 1))
	require.NoError(t, idx.Insert(20, 2))
	require.NoError(t, idx.Insert(30, 3))

	child, key, ok := idx.LeftSearch(15)
	require.True(t, ok)
	require.Equal(t, int32(20), key)
	require.Equal(t, int32(2), child)

	_, _, ok = idx.LeftSearch(30)
	require.False(t, ok)
}

func TestIndexChangeKeyRewritesInPlace(t *testing.T) {
	idx := newIndexPage(t, 1, 0)
	require.NoError(t, idx.Insert(10, 1))
	require.NoError(t, idx.Insert(20, 2))

	require.NoError(t, idx.ChangeKey(15, 10))
	e, err := idx.EntryAt(0)
	require.NoError(t, err)
	require.Equal(t, int32(15), e.Key)
	require.Equal(t, int32(1), e.Child)
}

func TestIndexDeleteRemovesMatchingKey(t *testing.T) {
	idx := newIndexPage(t, 1, 0)
	require.NoError(t, idx.Insert(10, 1))
	require.NoError(t, idx.Insert(20, 2))

	require.NoError(t, idx.Delete(10))
	require.Equal(t, 1, idx.NumEntries())
	e, _ := idx.First()
	require.Equal(t, int32(20), e.Key)
}

func TestRightSiblingOfAndLeftSiblingOf(t *testing.T) {
	parent := newIndexPage(t, 1, 100)
	require.NoError(t, parent.Insert(10, 200))
	require.NoError(t, parent.Insert(20, 300))

	require.Equal(t, int32(200), rightSiblingOf(parent, 100))
	require.Equal(t, int32(300), rightSiblingOf(parent, 200))
	require.Equal(t, invalidPID, rightSiblingOf(parent, 300))

	require.Equal(t, invalidPID, leftSiblingOf(parent, 100))
	require.Equal(t, int32(100), leftSiblingOf(parent, 200))
	require.Equal(t, int32(200), leftSiblingOf(parent, 300))
}
