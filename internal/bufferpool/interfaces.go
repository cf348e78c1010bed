package bufferpool

import "github.com/adbkit/bptreefile/internal/storage"

// Manager is the buffer pool contract the B+ tree driver depends on:
// pin-on-get, unpin-with-dirty-bit, and page allocation/release backed
// by a CLOCK-replaced fixed-capacity pool.
type Manager interface {
	// NewPage allocates a fresh page, pins it once, and returns it.
	NewPage() (pageID uint32, page *storage.Page, err error)

	// GetPage pins and returns the page for pageID, loading it from
	// disk through the storage manager if it is not already buffered.
	GetPage(pageID uint32) (*storage.Page, error)

	// Unpin decreases the pin count of page and, if dirty, marks the
	// frame for eventual flush.
	Unpin(page *storage.Page, dirty bool) error

	// FreePage releases pageID back to the pool. The page must not be
	// pinned.
	FreePage(pageID uint32) error

	// FlushAll writes every dirty frame back to disk.
	FlushAll() error

	// DestroyStorage drops every in-memory frame belonging to this
	// pool's backing file and removes its segment files from disk
	// entirely. Used by Tree.Destroy once every page has already been
	// freed, to reclaim the storage, not just the directory entry.
	DestroyStorage() error
}

// Replacer abstracts the frame-eviction policy so Pool can be tested
// independently of any one algorithm.
type Replacer interface {
	RecordAccess(frameID int)
	SetEvictable(frameID int, evictable bool)
	Evict() (frameID int, ok bool)
	Remove(frameID int)
	Size() int
}
