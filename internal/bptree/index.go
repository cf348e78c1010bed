package bptree

import (
	"fmt"

	"github.com/adbkit/bptreefile/internal/storage"
)

// IndexNode is a view over a page holding (key, child) separators in
// strictly ascending key order, plus a distinguished left_link child
// (stored in the page's prev field) covering keys below the first
// separator.
type IndexNode struct {
	Page *storage.Page
}

// InitIndex resets page into a fresh, empty index node with leftLink
// as its sole child.
func InitIndex(page *storage.Page, pageID uint32, leftLink int32) IndexNode {
	page.Reset(pageID, storage.NodeIndex)
	n := IndexNode{Page: page}
	n.SetLeftLink(leftLink)
	return n
}

func (n IndexNode) NumEntries() int { return n.Page.Count() }

func (n IndexNode) EntryAt(i int) (IndexEntry, error) {
	buf, err := n.Page.ReadAt(i)
	if err != nil {
		return IndexEntry{}, err
	}
	return DecodeIndexEntry(buf), nil
}

func (n IndexNode) First() (IndexEntry, bool) {
	if n.NumEntries() == 0 {
		return IndexEntry{}, false
	}
	e, _ := n.EntryAt(0)
	return e, true
}

func (n IndexNode) Last() (IndexEntry, bool) {
	if n.NumEntries() == 0 {
		return IndexEntry{}, false
	}
	e, _ := n.EntryAt(n.NumEntries() - 1)
	return e, true
}

func (n IndexNode) LeftLink() int32       { return n.Page.Prev() }
func (n IndexNode) SetLeftLink(pid int32) { n.Page.SetPrev(pid) }

func (n IndexNode) AvailableSpace() int   { return n.Page.AvailableSpace() }
func (n IndexNode) AtLeastHalfFull() bool { return halfFull(n.AvailableSpace()) }

func (n IndexNode) lowerBound(key int32) int {
	lo, hi := 0, n.NumEntries()
	for lo < hi {
		mid := (lo + hi) / 2
		e, _ := n.EntryAt(mid)
		if e.Key < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Insert places (key, child) into sorted position.
func (n IndexNode) Insert(key int32, child int32) error {
	if n.Page.FreeSpace() < IndexEntrySize+storage.SlotSize {
		return ErrNoSpace
	}
	pos := n.lowerBound(key)
	if err := n.Page.InsertAt(pos, EncodeIndexEntry(IndexEntry{Key: key, Child: child})); err != nil {
		return fmt.Errorf("bptree: index insert: %w", err)
	}
	return nil
}

func (n IndexNode) InsertEntry(e IndexEntry) error { return n.Insert(e.Key, e.Child) }

// Delete removes the last entry (highest slot) with the given key,
// scanning high to low as the original BTree file does.
func (n IndexNode) Delete(key int32) error {
	for i := n.NumEntries() - 1; i >= 0; i-- {
		e, _ := n.EntryAt(i)
		if e.Key == key {
			return n.Page.DeleteAt(i)
		}
	}
	return ErrNotFound
}

func (n IndexNode) DeleteAt(i int) error { return n.Page.DeleteAt(i) }

// Search scans slots from highest to lowest and returns the first
// entry whose key <= probe key. ok=false means the caller must
// descend via left_link (no separator key is <= probe).
func (n IndexNode) Search(key int32) (child int32, entryKey int32, ok bool) {
	for i := n.NumEntries() - 1; i >= 0; i-- {
		e, _ := n.EntryAt(i)
		if e.Key <= key {
			return e.Child, e.Key, true
		}
	}
	return 0, 0, false
}

// LeftSearch scans slots from lowest to highest and returns the first
// entry whose key is strictly greater than the probe key. Used to
// locate the separator bounding a left sibling during redistribution.
func (n IndexNode) LeftSearch(key int32) (child int32, entryKey int32, ok bool) {
	for i := 0; i < n.NumEntries(); i++ {
		e, _ := n.EntryAt(i)
		if e.Key > key {
			return e.Child, e.Key, true
		}
	}
	return 0, 0, false
}

// ChangeKey rewrites, in place, the key of the entry whose current key
// equals targetKey.
func (n IndexNode) ChangeKey(newKey, targetKey int32) error {
	for i := 0; i < n.NumEntries(); i++ {
		e, _ := n.EntryAt(i)
		if e.Key == targetKey {
			return n.Page.UpdateAt(i, EncodeIndexEntry(IndexEntry{Key: newKey, Child: e.Child}))
		}
	}
	return ErrNotFound
}
