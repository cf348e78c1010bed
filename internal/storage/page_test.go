package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPage(t *testing.T, pageID uint32) *Page {
	t.Helper()
	buf := make([]byte, PageSize)
	p, err := NewPage(buf, pageID)
	require.NoError(t, err)
	return p
}

func TestNewPageInitializesHeader(t *testing.T) {
	p := newTestPage(t, 7)
	assert.Equal(t, uint32(7), p.PageID())
	assert.Equal(t, NodeUnused, p.Tag())
	assert.Equal(t, 0, p.Count())
	assert.Equal(t, int32(-1), p.Prev())
	assert.Equal(t, int32(-1), p.Next())
	assert.Equal(t, PagePayload, p.FreeSpace())
}

func TestPageInsertReadOrder(t *testing.T) {
	p := newTestPage(t, 1)
	p.SetTag(NodeLeaf)

	require.NoError(t, p.InsertAt(0, []byte("bbbb")))
	require.NoError(t, p.InsertAt(0, []byte("aaaa")))
	require.NoError(t, p.InsertAt(2, []byte("cccc")))

	require.Equal(t, 3, p.Count())
	for i, want := range []string{"aaaa", "bbbb", "cccc"} {
		got, err := p.ReadAt(i)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestPageDeleteAtShiftsSlots(t *testing.T) {
	p := newTestPage(t, 1)
	require.NoError(t, p.InsertAt(0, []byte("aaaa")))
	require.NoError(t, p.InsertAt(1, []byte("bbbb")))
	require.NoError(t, p.InsertAt(2, []byte("cccc")))

	require.NoError(t, p.DeleteAt(1))
	require.Equal(t, 2, p.Count())

	first, _ := p.ReadAt(0)
	second, _ := p.ReadAt(1)
	assert.Equal(t, "aaaa", string(first))
	assert.Equal(t, "cccc", string(second))
}

func TestPageDeleteAtReclaimsSpace(t *testing.T) {
	p := newTestPage(t, 1)
	free0 := p.FreeSpace()

	require.NoError(t, p.InsertAt(0, []byte("aaaa")))
	require.NoError(t, p.InsertAt(1, []byte("bbbb")))
	require.NoError(t, p.InsertAt(2, []byte("cccc")))
	require.NoError(t, p.DeleteAt(1))
	require.NoError(t, p.DeleteAt(1))
	require.NoError(t, p.DeleteAt(0))
	require.Equal(t, 0, p.Count())
	assert.Equal(t, free0, p.FreeSpace(), "deleting every inserted tuple must reclaim all its bytes")

	// Repeated insert/delete cycles on a long-lived page must not leak
	// space: a fixed-width tuple can be inserted and removed many times
	// without ever exhausting the page.
	tup := []byte("xxxxxxxx")
	for i := 0; i < 500; i++ {
		require.NoError(t, p.InsertAt(0, tup))
		require.NoError(t, p.DeleteAt(0))
	}
	assert.Equal(t, free0, p.FreeSpace())
}

func TestPageUpdateAtRejectsSizeMismatch(t *testing.T) {
	p := newTestPage(t, 1)
	require.NoError(t, p.InsertAt(0, []byte("aaaa")))

	require.NoError(t, p.UpdateAt(0, []byte("zzzz")))
	got, _ := p.ReadAt(0)
	assert.Equal(t, "zzzz", string(got))

	err := p.UpdateAt(0, []byte("too-long"))
	require.ErrorIs(t, err, ErrPageCorrupted)
}

func TestPageInsertBadSlotIndex(t *testing.T) {
	p := newTestPage(t, 1)
	err := p.InsertAt(5, []byte("aaaa"))
	require.ErrorIs(t, err, ErrBadSlot)
}

func TestPageReadAtOutOfRange(t *testing.T) {
	p := newTestPage(t, 1)
	_, err := p.ReadAt(0)
	require.ErrorIs(t, err, ErrBadSlot)
}

func TestPageInsertFullReturnsErrPageFull(t *testing.T) {
	p := newTestPage(t, 1)
	tup := make([]byte, 64)
	var i int
	var err error
	for i = 0; i < 1000; i++ {
		err = p.InsertAt(p.Count(), tup)
		if err != nil {
			break
		}
	}
	require.ErrorIs(t, err, ErrPageFull)
}

func TestPageDebugStringIncludesHeader(t *testing.T) {
	p := newTestPage(t, 3)
	require.NoError(t, p.InsertAt(0, []byte("aaaa")))
	s := p.DebugString()
	assert.Contains(t, s, "page#3")
	assert.Contains(t, s, "slot[0]")
}
