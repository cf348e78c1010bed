package bptree

import "errors"

// Sentinel error kinds. Call sites wrap these with fmt.Errorf("bptree:
// ...: %w", err) so callers can still errors.Is against the kind.
var (
	// ErrNoSpace is returned when an insert cannot find room even
	// after a split, which only happens for a pathologically small
	// page size.
	ErrNoSpace = errors.New("bptree: no space")

	// ErrNotFound is returned when a key, or the current scan entry,
	// cannot be located.
	ErrNotFound = errors.New("bptree: key not found")

	// ErrDone is returned by Scan.GetNext once the scan has exhausted
	// its range.
	ErrDone = errors.New("bptree: scan done")

	// ErrIoFailure names the storage/bufferpool failure kind. No code
	// path in this package returns or wraps it: storage and bufferpool
	// errors reach the caller as they are, with a "bptree: ..." prefix.
	ErrIoFailure = errors.New("bptree: I/O failure")

	// ErrCorrupt names a violated on-disk invariant (bad node tag,
	// inconsistent sibling chain, etc). No code path in this package
	// checks for such violations or returns it.
	ErrCorrupt = errors.New("bptree: corrupt tree")

	// ErrDuplicateKey names an insert of a (key, rid) pair that already
	// exists in the tree. Insert does not look for an existing pair and
	// never returns it; a repeated pair is stored again.
	ErrDuplicateKey = errors.New("bptree: duplicate (key, rid)")

	// ErrScanNotPositioned is returned by DeleteCurrent when GetNext
	// has not yet produced an entry to delete.
	ErrScanNotPositioned = errors.New("bptree: scan is not positioned on an entry")

	// ErrTreeClosed names an operation on a closed Tree. Tree has no
	// Close method, and no operation returns it.
	ErrTreeClosed = errors.New("bptree: tree is closed")
)
