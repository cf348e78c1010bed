package bptree

import "fmt"

// splitLeaf implements §4.3.3: allocate a new right sibling, move the
// upper half of leaf's entries into it, insert (key, rid) into
// whichever side it now belongs, and fix up the sibling chain.
func (t *Tree) splitLeaf(leaf LeafNode, key int32, rid RecordID) (*splitResult, error) {
	newPid, newPage, err := t.bp.NewPage()
	if err != nil {
		return nil, fmt.Errorf("split leaf: %w", err)
	}
	sibling := InitLeaf(newPage, newPid)

	moveFrom := leaf.NumEntries() / 2
	for i := leaf.NumEntries() - 1; i >= moveFrom; i-- {
		e, err := leaf.EntryAt(i)
		if err != nil {
			_ = t.bp.Unpin(newPage, false)
			return nil, err
		}
		if err := sibling.InsertEntry(e); err != nil {
			_ = t.bp.Unpin(newPage, false)
			return nil, fmt.Errorf("split leaf: move entry: %w", err)
		}
		if err := leaf.DeleteAt(i); err != nil {
			_ = t.bp.Unpin(newPage, false)
			return nil, err
		}
	}

	first, _ := sibling.First()
	if key > first.Key {
		if err := sibling.Insert(key, rid); err != nil {
			_ = t.bp.Unpin(newPage, false)
			return nil, fmt.Errorf("split leaf: reinsert: %w", err)
		}
	} else {
		if err := leaf.Insert(key, rid); err != nil {
			_ = t.bp.Unpin(newPage, false)
			return nil, fmt.Errorf("split leaf: reinsert: %w", err)
		}
	}

	oldNext := leaf.Next()
	leaf.SetNext(int32(newPid))
	sibling.SetPrev(int32(leaf.Page.PageID()))
	sibling.SetNext(oldNext)
	if oldNext != invalidPID {
		nextPage, err := t.bp.GetPage(uint32(oldNext))
		if err != nil {
			_ = t.bp.Unpin(newPage, true)
			return nil, err
		}
		LeafNode{Page: nextPage}.SetPrev(int32(newPid))
		if err := t.bp.Unpin(nextPage, true); err != nil {
			return nil, err
		}
	}

	sep, _ := sibling.First()
	if err := t.bp.Unpin(newPage, true); err != nil {
		return nil, err
	}
	return &splitResult{sepKey: sep.Key, newPid: int32(newPid)}, nil
}

// splitIndex implements §4.3.6: allocate a new right sibling, move the
// upper half of idx's entries into it, promote the first moved entry's
// key out as the new separator (its child becomes the sibling's
// left_link), and insert the incoming (key, child) on whichever side
// it now belongs.
func (t *Tree) splitIndex(idx IndexNode, key int32, child int32) (*splitResult, error) {
	newPid, newPage, err := t.bp.NewPage()
	if err != nil {
		return nil, fmt.Errorf("split index: %w", err)
	}

	moveFrom := idx.NumEntries() / 2
	promoted, err := idx.EntryAt(moveFrom)
	if err != nil {
		_ = t.bp.Unpin(newPage, false)
		return nil, err
	}
	sibling := InitIndex(newPage, newPid, promoted.Child)

	for i := idx.NumEntries() - 1; i > moveFrom; i-- {
		e, err := idx.EntryAt(i)
		if err != nil {
			_ = t.bp.Unpin(newPage, false)
			return nil, err
		}
		if err := sibling.InsertEntry(e); err != nil {
			_ = t.bp.Unpin(newPage, false)
			return nil, fmt.Errorf("split index: move entry: %w", err)
		}
		if err := idx.DeleteAt(i); err != nil {
			_ = t.bp.Unpin(newPage, false)
			return nil, err
		}
	}
	if err := idx.DeleteAt(moveFrom); err != nil {
		_ = t.bp.Unpin(newPage, false)
		return nil, err
	}

	if key > promoted.Key {
		if err := sibling.Insert(key, child); err != nil {
			_ = t.bp.Unpin(newPage, false)
			return nil, fmt.Errorf("split index: reinsert: %w", err)
		}
	} else {
		if err := idx.Insert(key, child); err != nil {
			_ = t.bp.Unpin(newPage, false)
			return nil, fmt.Errorf("split index: reinsert: %w", err)
		}
	}

	if err := t.bp.Unpin(newPage, true); err != nil {
		return nil, err
	}
	return &splitResult{sepKey: promoted.Key, newPid: int32(newPid)}, nil
}
