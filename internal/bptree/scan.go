package bptree

import (
	"fmt"

	"github.com/adbkit/bptreefile/internal/storage"
)

// scanState tracks whether the cursor has been positioned yet and
// whether the caller just deleted the entry it is sitting on, per
// §4.4's start/processing/delete state machine.
type scanState int

const (
	scanStart scanState = iota
	scanProcessing
	scanDeleted
)

// Scan is a forward-only cursor over [lo, hi] (either bound may be nil
// for an open end), positioned on one leaf page at a time.
type Scan struct {
	tree  *Tree
	lo    *int32
	hi    *int32
	state scanState

	pid   int32
	pos   int
	entry LeafEntry
}

// OpenScan returns a new cursor over the range without touching any
// page; the first GetNext call positions it at the first qualifying
// entry. Both bounds nil scans the whole index; lo == hi is an
// exact-key scan; lo > hi is rejected by the caller's own usage (not
// validated here, matching the original's permissive OpenScan).
func (t *Tree) OpenScan(lo, hi *int32) (*Scan, error) {
	return &Scan{tree: t, lo: lo, hi: hi, state: scanStart}, nil
}

func (s *Scan) withinHigh(key int32) bool {
	return s.hi == nil || key <= *s.hi
}

// findStart descends from the root to the leaf and slot holding the
// first entry >= lo (or the very first entry if lo is nil).
func (s *Scan) findStart() (int32, int, error) {
	t := s.tree
	if t.root == invalidPID {
		return invalidPID, 0, ErrDone
	}
	pid := t.root
	for {
		page, err := t.bp.GetPage(uint32(pid))
		if err != nil {
			return invalidPID, 0, err
		}
		if page.Tag() == storage.NodeLeaf {
			if err := t.bp.Unpin(page, false); err != nil {
				return invalidPID, 0, err
			}
			break
		}
		idx := IndexNode{Page: page}
		var child int32
		if s.lo == nil {
			child = idx.LeftLink()
		} else {
			child = chooseChild(idx, *s.lo)
		}
		if err := t.bp.Unpin(page, false); err != nil {
			return invalidPID, 0, err
		}
		pid = child
	}

	page, err := t.bp.GetPage(uint32(pid))
	if err != nil {
		return invalidPID, 0, err
	}
	leaf := LeafNode{Page: page}
	pos := 0
	if s.lo != nil {
		pos = leaf.lowerBound(*s.lo)
	}
	if err := t.bp.Unpin(page, false); err != nil {
		return invalidPID, 0, err
	}
	return pid, pos, nil
}

// GetNext advances the cursor and reports the next qualifying entry.
// Returns ErrDone when the range is exhausted.
func (s *Scan) GetNext() (int32, RecordID, error) {
	if s.state == scanStart {
		pid, pos, err := s.findStart()
		if err != nil {
			return 0, RecordID{}, err
		}
		s.pid, s.pos = pid, pos
	} else if s.state == scanDeleted {
		// DeleteCurrent already advanced the slot directory out from
		// under s.pos: the entry that used to follow ours now sits at
		// the same index, so do not bump pos again.
		s.state = scanProcessing
	} else {
		s.pos++
	}

	for {
		if s.pid == invalidPID {
			return 0, RecordID{}, ErrDone
		}
		page, err := s.tree.bp.GetPage(uint32(s.pid))
		if err != nil {
			return 0, RecordID{}, err
		}
		leaf := LeafNode{Page: page}
		if s.pos < leaf.NumEntries() {
			e, err := leaf.EntryAt(s.pos)
			if err != nil {
				_ = s.tree.bp.Unpin(page, false)
				return 0, RecordID{}, err
			}
			if err := s.tree.bp.Unpin(page, false); err != nil {
				return 0, RecordID{}, err
			}
			if !s.withinHigh(e.Key) {
				s.pid = invalidPID
				return 0, RecordID{}, ErrDone
			}
			s.entry = e
			s.state = scanProcessing
			return e.Key, e.Rid, nil
		}
		next := leaf.Next()
		if err := s.tree.bp.Unpin(page, false); err != nil {
			return 0, RecordID{}, err
		}
		s.pid, s.pos = next, 0
	}
}

// DeleteCurrent removes the entry last returned by GetNext. The
// following GetNext call will not skip the entry that slides into its
// slot, since this advances the state machine rather than the index.
func (s *Scan) DeleteCurrent() error {
	if s.state != scanProcessing {
		return ErrScanNotPositioned
	}
	if err := s.tree.Delete(s.entry.Key, s.entry.Rid); err != nil {
		return fmt.Errorf("bptree: scan delete current: %w", err)
	}
	s.state = scanDeleted
	if s.tree.root == invalidPID {
		s.pid = invalidPID
	}
	return nil
}
