package bptree

import (
	"fmt"

	"github.com/adbkit/bptreefile/internal/storage"
)

// LeafNode is a view over a page holding (key, rid) entries in
// ascending key order. Duplicate keys are allowed; Insert does not
// check whether the same (key, rid) pair is already present.
type LeafNode struct {
	Page *storage.Page
}

// InitLeaf resets page into a fresh, empty leaf node.
func InitLeaf(page *storage.Page, pageID uint32) LeafNode {
	page.Reset(pageID, storage.NodeLeaf)
	return LeafNode{Page: page}
}

func (n LeafNode) NumEntries() int { return n.Page.Count() }

func (n LeafNode) EntryAt(i int) (LeafEntry, error) {
	buf, err := n.Page.ReadAt(i)
	if err != nil {
		return LeafEntry{}, err
	}
	return DecodeLeafEntry(buf), nil
}

func (n LeafNode) KeyAt(i int) (int32, error) {
	e, err := n.EntryAt(i)
	return e.Key, err
}

func (n LeafNode) First() (LeafEntry, bool) {
	if n.NumEntries() == 0 {
		return LeafEntry{}, false
	}
	e, _ := n.EntryAt(0)
	return e, true
}

func (n LeafNode) Last() (LeafEntry, bool) {
	if n.NumEntries() == 0 {
		return LeafEntry{}, false
	}
	e, _ := n.EntryAt(n.NumEntries() - 1)
	return e, true
}

func (n LeafNode) Prev() int32       { return n.Page.Prev() }
func (n LeafNode) SetPrev(pid int32) { n.Page.SetPrev(pid) }
func (n LeafNode) Next() int32       { return n.Page.Next() }
func (n LeafNode) SetNext(pid int32) { n.Page.SetNext(pid) }

// AvailableSpace mirrors the free-space accounting the external page
// collaborator would expose.
func (n LeafNode) AvailableSpace() int { return n.Page.AvailableSpace() }

// AtLeastHalfFull is the canonical underflow threshold: used bytes at
// least half of PAGE_PAYLOAD.
func (n LeafNode) AtLeastHalfFull() bool { return halfFull(n.AvailableSpace()) }

// lowerBound returns the index of the first entry with Key >= key.
func (n LeafNode) lowerBound(key int32) int {
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

// Insert places (key, rid) into sorted position. Returns ErrNoSpace if
// the page has no room for one more LeafEntrySize-byte slot.
func (n LeafNode) Insert(key int32, rid RecordID) error {
	if n.Page.FreeSpace() < LeafEntrySize+storage.SlotSize {
		return ErrNoSpace
	}
	pos := n.lowerBound(key)
	if err := n.Page.InsertAt(pos, EncodeLeafEntry(LeafEntry{Key: key, Rid: rid})); err != nil {
		return fmt.Errorf("bptree: leaf insert: %w", err)
	}
	return nil
}

// InsertEntry is Insert for a pre-built entry, used when moving
// entries during splits/merges.
func (n LeafNode) InsertEntry(e LeafEntry) error {
	return n.Insert(e.Key, e.Rid)
}

// Delete removes the first slot whose (key, rid) matches exactly.
func (n LeafNode) Delete(key int32, rid RecordID) error {
	for i := 0; i < n.NumEntries(); i++ {
		e, _ := n.EntryAt(i)
		if e.Key == key && e.Rid == rid {
			return n.Page.DeleteAt(i)
		}
	}
	return ErrNotFound
}

// DeleteAt removes the entry at slot i directly, used by split/merge
// code that already knows the index.
func (n LeafNode) DeleteAt(i int) error { return n.Page.DeleteAt(i) }
