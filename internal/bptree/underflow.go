package bptree

import (
	"fmt"

	"github.com/adbkit/bptreefile/internal/storage"
)

// fixLeafUnderflow repairs a leaf (childPid) that fell below half full
// after a delete, per §4.3.4. It pins parent, child and one sibling,
// and while merging also the leaf after the vacated one (to repoint its
// Prev), redistributing if the sibling can spare entries
// without itself dropping below half full, merging otherwise. The
// parent's own separator set is mutated in place; the caller is
// responsible for re-checking the parent's own fill level afterward.
func (t *Tree) fixLeafUnderflow(parentPid, childPid int32) error {
	parentPage, err := t.bp.GetPage(uint32(parentPid))
	if err != nil {
		return err
	}
	parent := IndexNode{Page: parentPage}

	childPage, err := t.bp.GetPage(uint32(childPid))
	if err != nil {
		_ = t.bp.Unpin(parentPage, false)
		return err
	}
	child := LeafNode{Page: childPage}

	last, hasLast := parent.Last()
	useRight := !(hasLast && last.Child == childPid)

	if useRight {
		rightPid := child.Next()
		rightPage, err := t.bp.GetPage(uint32(rightPid))
		if err != nil {
			_ = t.bp.Unpin(childPage, false)
			_ = t.bp.Unpin(parentPage, false)
			return err
		}
		right := LeafNode{Page: rightPage}

		if right.AtLeastHalfFull() {
			if f, ok := right.First(); ok {
				if _, sepKey, ok := parent.Search(f.Key); ok {
					_ = parent.Delete(sepKey)
				}
			}
			for !child.AtLeastHalfFull() && right.AtLeastHalfFull() {
				e, ok := right.First()
				if !ok {
					break
				}
				if err := child.InsertEntry(e); err != nil {
					return t.abortLeafFix(parentPage, childPage, rightPage, err)
				}
				if err := right.DeleteAt(0); err != nil {
					return t.abortLeafFix(parentPage, childPage, rightPage, err)
				}
			}
			if nf, ok := right.First(); ok {
				if err := parent.Insert(nf.Key, int32(rightPid)); err != nil {
					return t.abortLeafFix(parentPage, childPage, rightPage, err)
				}
			}
			if child.AtLeastHalfFull() && right.AtLeastHalfFull() {
				if err := t.bp.Unpin(rightPage, true); err != nil {
					return err
				}
				if err := t.bp.Unpin(childPage, true); err != nil {
					return err
				}
				return t.bp.Unpin(parentPage, true)
			}
		}

		// merge right into child.
		f, ok := right.First()
		var sepKey int32
		var haveSep bool
		if ok {
			_, sepKey, haveSep = parent.Search(f.Key)
		}
		for right.NumEntries() > 0 {
			e, _ := right.EntryAt(0)
			if err := child.InsertEntry(e); err != nil {
				return t.abortLeafFix(parentPage, childPage, rightPage, err)
			}
			if err := right.DeleteAt(0); err != nil {
				return t.abortLeafFix(parentPage, childPage, rightPage, err)
			}
		}
		oldNext := right.Next()
		child.SetNext(oldNext)
		if oldNext != invalidPID {
			if nextPage, err := t.bp.GetPage(uint32(oldNext)); err == nil {
				LeafNode{Page: nextPage}.SetPrev(childPid)
				_ = t.bp.Unpin(nextPage, true)
			}
		}
		if haveSep {
			_ = parent.Delete(sepKey)
		}
		if err := t.bp.Unpin(rightPage, true); err != nil {
			return err
		}
		if err := t.bp.FreePage(uint32(rightPid)); err != nil {
			return err
		}
		if err := t.bp.Unpin(childPage, true); err != nil {
			return err
		}
		return t.bp.Unpin(parentPage, true)
	}

	leftPid := child.Prev()
	leftPage, err := t.bp.GetPage(uint32(leftPid))
	if err != nil {
		_ = t.bp.Unpin(childPage, false)
		_ = t.bp.Unpin(parentPage, false)
		return err
	}
	left := LeafNode{Page: leftPage}

	if left.AtLeastHalfFull() {
		if f, ok := child.First(); ok {
			if _, sepKey, ok := parent.Search(f.Key); ok {
				_ = parent.Delete(sepKey)
			}
		}
		for !child.AtLeastHalfFull() && left.AtLeastHalfFull() {
			e, ok := left.Last()
			if !ok {
				break
			}
			if err := child.InsertEntry(e); err != nil {
				return t.abortLeafFix(parentPage, childPage, leftPage, err)
			}
			if err := left.DeleteAt(left.NumEntries() - 1); err != nil {
				return t.abortLeafFix(parentPage, childPage, leftPage, err)
			}
		}
		if nf, ok := child.First(); ok {
			if err := parent.Insert(nf.Key, childPid); err != nil {
				return t.abortLeafFix(parentPage, childPage, leftPage, err)
			}
		}
		if child.AtLeastHalfFull() && left.AtLeastHalfFull() {
			if err := t.bp.Unpin(leftPage, true); err != nil {
				return err
			}
			if err := t.bp.Unpin(childPage, true); err != nil {
				return err
			}
			return t.bp.Unpin(parentPage, true)
		}
	}

	// merge child into left.
	f, ok := child.First()
	var sepKey int32
	var haveSep bool
	if ok {
		_, sepKey, haveSep = parent.Search(f.Key)
	}
	for child.NumEntries() > 0 {
		e, _ := child.EntryAt(0)
		if err := left.InsertEntry(e); err != nil {
			return t.abortLeafFix(parentPage, childPage, leftPage, err)
		}
		if err := child.DeleteAt(0); err != nil {
			return t.abortLeafFix(parentPage, childPage, leftPage, err)
		}
	}
	oldNext := child.Next()
	left.SetNext(oldNext)
	if oldNext != invalidPID {
		if nextPage, err := t.bp.GetPage(uint32(oldNext)); err == nil {
			LeafNode{Page: nextPage}.SetPrev(leftPid)
			_ = t.bp.Unpin(nextPage, true)
		}
	}
	if haveSep {
		_ = parent.Delete(sepKey)
	}
	if err := t.bp.Unpin(childPage, true); err != nil {
		return err
	}
	if err := t.bp.FreePage(uint32(childPid)); err != nil {
		return err
	}
	if err := t.bp.Unpin(leftPage, true); err != nil {
		return err
	}
	return t.bp.Unpin(parentPage, true)
}

// abortLeafFix unpins the three pages a leaf-underflow fixup may be
// holding and surfaces the original error that forced the abort.
func (t *Tree) abortLeafFix(parentPage, childPage, otherPage *storage.Page, cause error) error {
	_ = t.bp.Unpin(otherPage, true)
	_ = t.bp.Unpin(childPage, true)
	_ = t.bp.Unpin(parentPage, true)
	return fmt.Errorf("fix leaf underflow: %w", cause)
}

// rightSiblingOf returns the child pid immediately to the right of
// childPid within parent, or invalidPID if childPid is the last child.
func rightSiblingOf(parent IndexNode, childPid int32) int32 {
	if parent.LeftLink() == childPid {
		if e, ok := parent.First(); ok {
			return e.Child
		}
		return invalidPID
	}
	for i := 0; i < parent.NumEntries(); i++ {
		e, _ := parent.EntryAt(i)
		if e.Child == childPid {
			if i+1 < parent.NumEntries() {
				nxt, _ := parent.EntryAt(i + 1)
				return nxt.Child
			}
			return invalidPID
		}
	}
	return invalidPID
}

// leftSiblingOf returns the child pid immediately to the left of
// childPid within parent, or invalidPID if childPid is the left_link.
func leftSiblingOf(parent IndexNode, childPid int32) int32 {
	if parent.LeftLink() == childPid {
		return invalidPID
	}
	for i := 0; i < parent.NumEntries(); i++ {
		e, _ := parent.EntryAt(i)
		if e.Child == childPid {
			if i == 0 {
				return parent.LeftLink()
			}
			prev, _ := parent.EntryAt(i - 1)
			return prev.Child
		}
	}
	return invalidPID
}

// fixIndexUnderflow repairs an index node (childPid) that fell below
// half full after a child-level merge, per §4.3.5. Redistribution
// edits the parent separator in place via ChangeKey; merges insert the
// parent separator as a real entry before absorbing the sibling.
func (t *Tree) fixIndexUnderflow(parentPid, childPid int32) error {
	parentPage, err := t.bp.GetPage(uint32(parentPid))
	if err != nil {
		return err
	}
	parent := IndexNode{Page: parentPage}

	childPage, err := t.bp.GetPage(uint32(childPid))
	if err != nil {
		_ = t.bp.Unpin(parentPage, false)
		return err
	}
	child := IndexNode{Page: childPage}

	last, hasLast := parent.Last()
	useRight := !(hasLast && last.Child == childPid)

	if useRight {
		rightPid := rightSiblingOf(parent, childPid)
		rightPage, err := t.bp.GetPage(uint32(rightPid))
		if err != nil {
			_ = t.bp.Unpin(childPage, false)
			_ = t.bp.Unpin(parentPage, false)
			return err
		}
		right := IndexNode{Page: rightPage}

		if right.AtLeastHalfFull() {
			for !child.AtLeastHalfFull() && right.AtLeastHalfFull() {
				f, ok := right.First()
				if !ok {
					break
				}
				_, parentKey, ok := parent.Search(f.Key)
				if !ok {
					break
				}
				if err := child.Insert(parentKey, right.LeftLink()); err != nil {
					return fmt.Errorf("fix index underflow: %w", err)
				}
				right.SetLeftLink(f.Child)
				if err := parent.ChangeKey(f.Key, parentKey); err != nil {
					return fmt.Errorf("fix index underflow: %w", err)
				}
				if err := right.DeleteAt(0); err != nil {
					return fmt.Errorf("fix index underflow: %w", err)
				}
			}
			if child.AtLeastHalfFull() && right.AtLeastHalfFull() {
				if err := t.bp.Unpin(rightPage, true); err != nil {
					return err
				}
				if err := t.bp.Unpin(childPage, true); err != nil {
					return err
				}
				return t.bp.Unpin(parentPage, true)
			}
		}

		f, ok := right.First()
		var parentKey int32
		var haveSep bool
		if ok {
			_, parentKey, haveSep = parent.Search(f.Key)
			if haveSep {
				if err := child.Insert(parentKey, right.LeftLink()); err != nil {
					return fmt.Errorf("fix index underflow: merge: %w", err)
				}
			}
		}
		for right.NumEntries() > 0 {
			e, _ := right.EntryAt(0)
			if err := child.InsertEntry(e); err != nil {
				return fmt.Errorf("fix index underflow: merge: %w", err)
			}
			if err := right.DeleteAt(0); err != nil {
				return fmt.Errorf("fix index underflow: merge: %w", err)
			}
		}
		if haveSep {
			_ = parent.Delete(parentKey)
		}
		if err := t.bp.Unpin(rightPage, true); err != nil {
			return err
		}
		if err := t.bp.FreePage(uint32(rightPid)); err != nil {
			return err
		}
		if err := t.bp.Unpin(childPage, true); err != nil {
			return err
		}
		return t.bp.Unpin(parentPage, true)
	}

	leftPid := leftSiblingOf(parent, childPid)
	leftPage, err := t.bp.GetPage(uint32(leftPid))
	if err != nil {
		_ = t.bp.Unpin(childPage, false)
		_ = t.bp.Unpin(parentPage, false)
		return err
	}
	left := IndexNode{Page: leftPage}

	if left.AtLeastHalfFull() {
		for !child.AtLeastHalfFull() && left.AtLeastHalfFull() {
			e, ok := left.Last()
			if !ok {
				break
			}
			_, parentKey, ok := parent.LeftSearch(e.Key)
			if !ok {
				break
			}
			if err := child.Insert(parentKey, child.LeftLink()); err != nil {
				return fmt.Errorf("fix index underflow: %w", err)
			}
			child.SetLeftLink(e.Child)
			if err := parent.ChangeKey(e.Key, parentKey); err != nil {
				return fmt.Errorf("fix index underflow: %w", err)
			}
			if err := left.DeleteAt(left.NumEntries() - 1); err != nil {
				return fmt.Errorf("fix index underflow: %w", err)
			}
		}
		if child.AtLeastHalfFull() && left.AtLeastHalfFull() {
			if err := t.bp.Unpin(leftPage, true); err != nil {
				return err
			}
			if err := t.bp.Unpin(childPage, true); err != nil {
				return err
			}
			return t.bp.Unpin(parentPage, true)
		}
	}

	// merge child into left: locate the separator bounding child.
	f, ok := child.First()
	var parentKey int32
	var haveSep bool
	if ok {
		_, parentKey, haveSep = parent.Search(f.Key)
		if haveSep {
			if err := left.Insert(parentKey, child.LeftLink()); err != nil {
				return fmt.Errorf("fix index underflow: merge: %w", err)
			}
		}
	}
	for child.NumEntries() > 0 {
		e, _ := child.EntryAt(0)
		if err := left.InsertEntry(e); err != nil {
			return fmt.Errorf("fix index underflow: merge: %w", err)
		}
		if err := child.DeleteAt(0); err != nil {
			return fmt.Errorf("fix index underflow: merge: %w", err)
		}
	}
	if haveSep {
		_ = parent.Delete(parentKey)
	}
	if err := t.bp.Unpin(childPage, true); err != nil {
		return err
	}
	if err := t.bp.FreePage(uint32(childPid)); err != nil {
		return err
	}
	if err := t.bp.Unpin(leftPage, true); err != nil {
		return err
	}
	return t.bp.Unpin(parentPage, true)
}
