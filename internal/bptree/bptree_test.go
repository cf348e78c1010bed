package bptree

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adbkit/bptreefile/internal/bufferpool"
	"github.com/adbkit/bptreefile/internal/storage"
)

// newTestTree wires up a Pool and FileDirectory under t.TempDir() and
// opens a fresh tree named "idx" against them, the same plumbing
// internal/config/cmd/bptreectl will use in production.
func newTestTree(t *testing.T) *Tree {
	t.Helper()
	dir := t.TempDir()

	sm := storage.NewStorageManager()
	fs := storage.LocalFileSet{Dir: dir, Base: "data"}
	pool, err := bufferpool.NewPool(sm, fs, 32)
	require.NoError(t, err)

	fd, err := storage.NewFileDirectory(dir)
	require.NoError(t, err)

	tree, err := Open(pool, fd, "idx")
	require.NoError(t, err)
	return tree
}

func scanAll(t *testing.T, tree *Tree) []LeafEntry {
	t.Helper()
	s, err := tree.OpenScan(nil, nil)
	require.NoError(t, err)
	var got []LeafEntry
	for {
		key, rid, err := s.GetNext()
		if err == ErrDone {
			break
		}
		require.NoError(t, err)
		got = append(got, LeafEntry{Key: key, Rid: rid})
	}
	return got
}

func TestInsertAscendingKeepsSortedOrder(t *testing.T) {
	tree := newTestTree(t)
	const n = 300
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(int32(i), RecordID{PageNo: int32(i), SlotNo: 0}))
	}

	entries := scanAll(t, tree)
	require.Len(t, entries, n)
	for i, e := range entries {
		require.Equal(t, int32(i), e.Key)
	}
}

func TestInsertDescendingKeepsSortedOrder(t *testing.T) {
	tree := newTestTree(t)
	const n = 300
	for i := n - 1; i >= 0; i-- {
		require.NoError(t, tree.Insert(int32(i), RecordID{PageNo: int32(i), SlotNo: 0}))
	}

	entries := scanAll(t, tree)
	require.Len(t, entries, n)
	for i, e := range entries {
		require.Equal(t, int32(i), e.Key)
	}
}

func TestInsertRandomOrderRoundTrips(t *testing.T) {
	tree := newTestTree(t)
	keys := []int32{50, 3, 77, 21, 4, 99, 1, 62, 8, 33, 45, 12, 90, 5, 70, 2, 66}
	for _, k := range keys {
		require.NoError(t, tree.Insert(k, RecordID{PageNo: k, SlotNo: 1}))
	}

	entries := scanAll(t, tree)
	require.Len(t, entries, len(keys))
	for i := 1; i < len(entries); i++ {
		require.Less(t, entries[i-1].Key, entries[i].Key)
	}
	want := slices.Clone(keys)
	slices.Sort(want)
	for i, e := range entries {
		require.Equal(t, want[i], e.Key)
	}
}

func TestRootSplitsToHeightTwo(t *testing.T) {
	tree := newTestTree(t)
	// Enough entries to overflow a single ~50-entry leaf page.
	for i := 0; i < 120; i++ {
		require.NoError(t, tree.Insert(int32(i), RecordID{PageNo: int32(i)}))
	}
	stats, err := tree.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.Height)
	require.GreaterOrEqual(t, stats.LeafCount, 2)
}

func TestDeleteAscendingCollapsesToEmpty(t *testing.T) {
	tree := newTestTree(t)
	const n = 300
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(int32(i), RecordID{PageNo: int32(i)}))
	}
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Delete(int32(i), RecordID{PageNo: int32(i)}))
	}
	require.Equal(t, invalidPID, tree.Root())
	require.Empty(t, scanAll(t, tree))
}

func TestDeleteDescendingCollapsesToEmpty(t *testing.T) {
	tree := newTestTree(t)
	const n = 300
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert(int32(i), RecordID{PageNo: int32(i)}))
	}
	for i := n - 1; i >= 0; i-- {
		require.NoError(t, tree.Delete(int32(i), RecordID{PageNo: int32(i)}))
	}
	require.Equal(t, invalidPID, tree.Root())
	require.Empty(t, scanAll(t, tree))
}

func TestDeleteMissingEntryReturnsNotFound(t *testing.T) {
	tree := newTestTree(t)
	require.NoError(t, tree.Insert(1, RecordID{PageNo: 1}))
	err := tree.Delete(2, RecordID{PageNo: 1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestScanRangeBounds(t *testing.T) {
	tree := newTestTree(t)
	for i := 0; i < 100; i++ {
		require.NoError(t, tree.Insert(int32(i), RecordID{PageNo: int32(i)}))
	}
	lo, hi := int32(20), int32(29)
	s, err := tree.OpenScan(&lo, &hi)
	require.NoError(t, err)
	var got []int32
	for {
		k, _, err := s.GetNext()
		if err == ErrDone {
			break
		}
		require.NoError(t, err)
		got = append(got, k)
	}
	require.Len(t, got, 10)
	for i, k := range got {
		require.Equal(t, int32(20+i), k)
	}
}

func TestScanExactKey(t *testing.T) {
	tree := newTestTree(t)
	for i := 0; i < 50; i++ {
		require.NoError(t, tree.Insert(int32(i), RecordID{PageNo: int32(i)}))
	}
	key := int32(17)
	s, err := tree.OpenScan(&key, &key)
	require.NoError(t, err)
	k, _, err := s.GetNext()
	require.NoError(t, err)
	require.Equal(t, key, k)
	_, _, err = s.GetNext()
	require.ErrorIs(t, err, ErrDone)
}

func TestEmptyTreeScanIsImmediatelyDone(t *testing.T) {
	tree := newTestTree(t)
	s, err := tree.OpenScan(nil, nil)
	require.NoError(t, err)
	_, _, err = s.GetNext()
	require.ErrorIs(t, err, ErrDone)
}

func TestScanDeleteCurrentDoesNotSkipNext(t *testing.T) {
	tree := newTestTree(t)
	for i := 0; i < 30; i++ {
		require.NoError(t, tree.Insert(int32(i), RecordID{PageNo: int32(i)}))
	}
	s, err := tree.OpenScan(nil, nil)
	require.NoError(t, err)

	var got []int32
	for {
		k, _, err := s.GetNext()
		if err == ErrDone {
			break
		}
		require.NoError(t, err)
		got = append(got, k)
		if k == 10 {
			require.NoError(t, s.DeleteCurrent())
		}
	}
	require.Equal(t, 30, len(got))

	remaining := scanAll(t, tree)
	require.Len(t, remaining, 29)
	for _, e := range remaining {
		require.NotEqual(t, int32(10), e.Key)
	}
}

func TestDeleteCurrentWithoutPositionFails(t *testing.T) {
	tree := newTestTree(t)
	s, err := tree.OpenScan(nil, nil)
	require.NoError(t, err)
	require.ErrorIs(t, s.DeleteCurrent(), ErrScanNotPositioned)
}

func TestDestroyIsIdempotent(t *testing.T) {
	tree := newTestTree(t)
	for i := 0; i < 200; i++ {
		require.NoError(t, tree.Insert(int32(i), RecordID{PageNo: int32(i)}))
	}
	require.NoError(t, tree.Destroy())
	require.Equal(t, invalidPID, tree.Root())
	require.NoError(t, tree.Destroy())
	require.Equal(t, invalidPID, tree.Root())
}

func TestInterleavedInsertAndDeleteMaintainsInvariants(t *testing.T) {
	tree := newTestTree(t)
	present := map[int32]bool{}
	for i := int32(0); i < 400; i++ {
		switch {
		case i%5 == 0 && i > 0:
			k := i - 3
			if present[k] {
				require.NoError(t, tree.Delete(k, RecordID{PageNo: k}))
				delete(present, k)
			}
			fallthrough
		default:
			require.NoError(t, tree.Insert(i, RecordID{PageNo: i}))
			present[i] = true
		}
	}

	entries := scanAll(t, tree)
	require.Len(t, entries, len(present))
	for i := 1; i < len(entries); i++ {
		require.Less(t, entries[i-1].Key, entries[i].Key)
	}
	for _, e := range entries {
		require.True(t, present[e.Key])
	}
}
