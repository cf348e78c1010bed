package bptree

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/adbkit/bptreefile/internal/bufferpool"
	"github.com/adbkit/bptreefile/internal/storage"
)

// invalidPID marks an absent page reference: an empty tree's root, a
// leaf's missing sibling, or an index node's unused left_link slot
// before it is set.
const invalidPID int32 = -1

// Tree is a disk-resident B+ tree index over int32 keys, mapping to
// opaque RecordIDs. One Tree instance is owned by a single logical
// caller at a time; there is no internal locking.
type Tree struct {
	bp   bufferpool.Manager
	dir  storage.Directory
	name string
	root int32
}

// Open opens the index registered under name in dir, or creates an
// empty one (root = invalid, materialized on the first Insert) if no
// such entry exists yet.
func Open(bp bufferpool.Manager, dir storage.Directory, name string) (*Tree, error) {
	pid, err := dir.GetFileEntry(name)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("bptree: open %q: %w", name, err)
		}
		return &Tree{bp: bp, dir: dir, name: name, root: invalidPID}, nil
	}
	return &Tree{bp: bp, dir: dir, name: name, root: int32(pid)}, nil
}

// Root returns the current root page number, or invalidPID (-1) for
// an empty tree.
func (t *Tree) Root() int32 { return t.root }

// Destroy recursively frees every page reachable from the root,
// removes the directory entry, and reclaims the tree's backing storage
// entirely, leaving the tree empty.
func (t *Tree) Destroy() error {
	if t.root != invalidPID {
		if err := t.freeSubtree(t.root); err != nil {
			return fmt.Errorf("bptree: destroy: %w", err)
		}
	}
	if err := t.dir.DeleteFileEntry(t.name); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("bptree: destroy: %w", err)
	}
	if err := t.bp.DestroyStorage(); err != nil {
		return fmt.Errorf("bptree: destroy: %w", err)
	}
	t.root = invalidPID
	return nil
}

func (t *Tree) freeSubtree(pid int32) error {
	page, err := t.bp.GetPage(uint32(pid))
	if err != nil {
		return err
	}
	var children []int32
	if page.Tag() == storage.NodeIndex {
		idx := IndexNode{Page: page}
		children = append(children, idx.LeftLink())
		for i := 0; i < idx.NumEntries(); i++ {
			e, _ := idx.EntryAt(i)
			children = append(children, e.Child)
		}
	}
	if err := t.bp.Unpin(page, false); err != nil {
		return err
	}
	for _, c := range children {
		if c == invalidPID {
			continue
		}
		if err := t.freeSubtree(c); err != nil {
			return err
		}
	}
	return t.bp.FreePage(uint32(pid))
}

// chooseChild implements the descent rule of §4.3.1: keys below the
// node's first separator go left via left_link, otherwise the child
// is the greatest entry whose key <= probe key.
func chooseChild(idx IndexNode, key int32) int32 {
	if idx.NumEntries() == 0 {
		return idx.LeftLink()
	}
	k0, _ := idx.First()
	if key < k0.Key {
		return idx.LeftLink()
	}
	child := idx.LeftLink()
	for i := 0; i < idx.NumEntries(); i++ {
		e, _ := idx.EntryAt(i)
		if e.Key <= key {
			child = e.Child
			continue
		}
		break
	}
	return child
}

// Insert adds (key, rid) to the tree, splitting leaf and index nodes
// as needed along the insertion path.
func (t *Tree) Insert(key int32, rid RecordID) error {
	if t.root == invalidPID {
		pid, page, err := t.bp.NewPage()
		if err != nil {
			return fmt.Errorf("bptree: insert: %w", err)
		}
		leaf := InitLeaf(page, pid)
		if err := leaf.Insert(key, rid); err != nil {
			_ = t.bp.Unpin(page, false)
			return fmt.Errorf("bptree: insert: %w", err)
		}
		if err := t.bp.Unpin(page, true); err != nil {
			return err
		}
		t.root = int32(pid)
		if err := t.dir.AddFileEntry(t.name, uint32(pid)); err != nil {
			return fmt.Errorf("bptree: insert: register root: %w", err)
		}
		slog.Debug("bptree.Insert.newRoot", "root", t.root, "key", key)
		return nil
	}

	result, err := t.insertAt(t.root, key, rid)
	if err != nil {
		return fmt.Errorf("bptree: insert: %w", err)
	}
	if result == nil {
		return nil
	}

	pid, page, err := t.bp.NewPage()
	if err != nil {
		return fmt.Errorf("bptree: insert: new root: %w", err)
	}
	newRoot := InitIndex(page, pid, t.root)
	if err := newRoot.Insert(result.sepKey, result.newPid); err != nil {
		_ = t.bp.Unpin(page, false)
		return fmt.Errorf("bptree: insert: new root: %w", err)
	}
	if err := t.bp.Unpin(page, true); err != nil {
		return err
	}
	t.root = int32(pid)
	if err := t.dir.AddFileEntry(t.name, uint32(pid)); err != nil {
		return fmt.Errorf("bptree: insert: register new root: %w", err)
	}
	slog.Debug("bptree.Insert.rootSplit", "newRoot", t.root, "sep", result.sepKey)
	return nil
}

// splitResult is returned up the insertion recursion whenever a node
// had to split: the caller must insert (sepKey, newPid) into its own
// node, recursing again if that overflows too.
type splitResult struct {
	sepKey int32
	newPid int32
}

func (t *Tree) insertAt(pid int32, key int32, rid RecordID) (*splitResult, error) {
	page, err := t.bp.GetPage(uint32(pid))
	if err != nil {
		return nil, err
	}

	if page.Tag() == storage.NodeLeaf {
		leaf := LeafNode{Page: page}
		if err := leaf.Insert(key, rid); err == nil {
			return nil, t.bp.Unpin(page, true)
		} else if !errors.Is(err, ErrNoSpace) {
			_ = t.bp.Unpin(page, false)
			return nil, err
		}
		result, err := t.splitLeaf(leaf, key, rid)
		if unpinErr := t.bp.Unpin(page, true); unpinErr != nil && err == nil {
			err = unpinErr
		}
		return result, err
	}

	idx := IndexNode{Page: page}
	child := chooseChild(idx, key)
	childSplit, err := t.insertAt(child, key, rid)
	if err != nil {
		_ = t.bp.Unpin(page, false)
		return nil, err
	}
	if childSplit == nil {
		return nil, t.bp.Unpin(page, false)
	}

	if err := idx.Insert(childSplit.sepKey, childSplit.newPid); err == nil {
		return nil, t.bp.Unpin(page, true)
	} else if !errors.Is(err, ErrNoSpace) {
		_ = t.bp.Unpin(page, true)
		return nil, err
	}
	result, err := t.splitIndex(idx, childSplit.sepKey, childSplit.newPid)
	if unpinErr := t.bp.Unpin(page, true); unpinErr != nil && err == nil {
		err = unpinErr
	}
	return result, err
}

// Delete removes the exact (key, rid) pair, propagating underflow
// handling (redistribution, merge, root collapse) up the descent path.
func (t *Tree) Delete(key int32, rid RecordID) error {
	if t.root == invalidPID {
		return ErrNotFound
	}
	if err := t.deleteAt(t.root, nil, key, rid); err != nil {
		return fmt.Errorf("bptree: delete: %w", err)
	}
	return nil
}

func (t *Tree) deleteAt(pid int32, path []int32, key int32, rid RecordID) error {
	page, err := t.bp.GetPage(uint32(pid))
	if err != nil {
		return err
	}

	if page.Tag() == storage.NodeLeaf {
		leaf := LeafNode{Page: page}
		if err := leaf.Delete(key, rid); err != nil {
			_ = t.bp.Unpin(page, false)
			return err
		}
		if pid == t.root && leaf.NumEntries() == 0 {
			if err := t.bp.Unpin(page, true); err != nil {
				return err
			}
			if err := t.bp.FreePage(uint32(pid)); err != nil {
				return err
			}
			t.root = invalidPID
			if err := t.dir.DeleteFileEntry(t.name); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			slog.Debug("bptree.Delete.emptyRoot")
			return nil
		}
		underflowed := !leaf.AtLeastHalfFull() && pid != t.root
		if err := t.bp.Unpin(page, true); err != nil {
			return err
		}
		if !underflowed {
			return nil
		}
		parentPid := path[len(path)-1]
		return t.fixLeafUnderflow(parentPid, pid)
	}

	idx := IndexNode{Page: page}
	child := chooseChild(idx, key)
	if err := t.bp.Unpin(page, false); err != nil {
		return err
	}

	childPath := append(append(make([]int32, 0, len(path)+1), path...), pid)
	if err := t.deleteAt(child, childPath, key, rid); err != nil {
		return err
	}

	page2, err := t.bp.GetPage(uint32(pid))
	if err != nil {
		return err
	}
	idx2 := IndexNode{Page: page2}

	if pid == t.root {
		if idx2.NumEntries() == 0 {
			newRoot := idx2.LeftLink()
			if err := t.bp.Unpin(page2, false); err != nil {
				return err
			}
			if err := t.bp.FreePage(uint32(pid)); err != nil {
				return err
			}
			t.root = newRoot
			if newRoot == invalidPID {
				if err := t.dir.DeleteFileEntry(t.name); err != nil && !errors.Is(err, storage.ErrNotFound) {
					return err
				}
			} else if err := t.dir.AddFileEntry(t.name, uint32(newRoot)); err != nil {
				return err
			}
			slog.Debug("bptree.Delete.rootCollapse", "newRoot", t.root)
			return nil
		}
		return t.bp.Unpin(page2, true)
	}

	if idx2.AtLeastHalfFull() {
		return t.bp.Unpin(page2, true)
	}
	if err := t.bp.Unpin(page2, true); err != nil {
		return err
	}
	parentPid := path[len(path)-1]
	return t.fixIndexUnderflow(parentPid, pid)
}
