package bufferpool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/adbkit/bptreefile/internal/lock"
	"github.com/adbkit/bptreefile/internal/storage"
)

var (
	logPrefix = "bufferpool: "

	DefaultCapacity = 64

	// ErrNoFreeFrame is returned when no unpinned frame is available for replacement.
	ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all pinned)")

	// ErrPagePinned is returned when trying to free a pinned page.
	ErrPagePinned = errors.New("bufferpool: page is pinned")
)

// Frame holds one buffered page and its pin/dirty bookkeeping. Pin
// counting is delegated to lock.RefCount, the same atomic wrapper the
// teacher uses to track reference-counted resources elsewhere.
type Frame struct {
	PageID uint32
	Page   *storage.Page
	Dirty  bool
	Pin    *lock.RefCount
}

var _ Manager = (*Pool)(nil)

// Pool is a fixed-capacity buffer pool bound to one FileSet, evicting
// via CLOCK (second-chance) replacement. One Pool exists per open
// B+ tree file.
type Pool struct {
	sm *storage.StorageManager
	fs storage.FileSet

	mu        sync.Mutex
	frames    []*Frame // fixed-size, len == capacity, nil == free slot
	pageTable map[uint32]int
	capacity  int
	replacer  Replacer

	nextPageID uint32
}

// NewPool creates a pool of the given capacity (DefaultCapacity if <=
// 0) and primes its page allocator from however many pages already
// exist on disk for fs.
func NewPool(sm *storage.StorageManager, fs storage.FileSet, capacity int) (*Pool, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	count, err := sm.CountPages(fs)
	if err != nil {
		return nil, err
	}
	return &Pool{
		sm:         sm,
		fs:         fs,
		frames:     make([]*Frame, capacity),
		pageTable:  make(map[uint32]int),
		capacity:   capacity,
		replacer:   newClockAdapter(capacity),
		nextPageID: count,
	}, nil
}

// NewPage allocates a brand-new page at the next free pageID, pins it,
// and returns it as an empty page with a freshly reset header (unused
// tag, no slots, prev/next -1).
func (p *Pool) NewPage() (uint32, *storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pageID := p.nextPageID
	p.nextPageID++

	page, err := storage.NewPage(make([]byte, storage.PageSize), pageID)
	if err != nil {
		return 0, nil, err
	}

	idx, err := p.reserveFrameLocked(pageID)
	if err != nil {
		return 0, nil, err
	}
	p.frames[idx] = &Frame{PageID: pageID, Page: page, Dirty: true, Pin: lock.NewRefCount()}
	p.pageTable[pageID] = idx
	p.replacer.RecordAccess(idx)
	p.replacer.SetEvictable(idx, false)

	slog.Debug(logPrefix+"NewPage", "pageID", pageID, "frameIdx", idx)
	return pageID, page, nil
}

// GetPage returns a page from the buffer pool, pinning it. If absent
// it is loaded from disk, evicting a CLOCK victim if the pool is full.
func (p *Pool) GetPage(pageID uint32) (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable[pageID]; ok {
		f := p.frames[idx]
		f.Pin.Inc()
		p.replacer.RecordAccess(idx)
		p.replacer.SetEvictable(idx, false)
		slog.Debug(logPrefix+"GetPage hit", "pageID", pageID, "frameIdx", idx, "pin", f.Pin.Get())
		return f.Page, nil
	}

	idx, err := p.reserveFrameLocked(pageID)
	if err != nil {
		return nil, err
	}

	page, err := p.sm.LoadPage(p.fs, pageID)
	if err != nil {
		return nil, err
	}
	p.frames[idx] = &Frame{PageID: pageID, Page: page, Dirty: false, Pin: lock.NewRefCount()}
	p.pageTable[pageID] = idx
	p.replacer.RecordAccess(idx)
	p.replacer.SetEvictable(idx, false)

	slog.Debug(logPrefix+"GetPage loaded", "pageID", pageID, "frameIdx", idx)
	return page, nil
}

// reserveFrameLocked returns an index with no live frame in it, either
// a free slot or a freshly evicted CLOCK victim. Caller holds p.mu.
func (p *Pool) reserveFrameLocked(_ uint32) (int, error) {
	for i, f := range p.frames {
		if f == nil {
			return i, nil
		}
	}

	idx, ok := p.replacer.Evict()
	if !ok {
		return -1, ErrNoFreeFrame
	}

	victim := p.frames[idx]
	if victim.Dirty {
		slog.Debug(logPrefix+"evicting dirty victim", "victimPageID", victim.PageID)
		if err := p.sm.SavePage(p.fs, victim.PageID, victim.Page); err != nil {
			return -1, err
		}
	}
	delete(p.pageTable, victim.PageID)
	p.frames[idx] = nil
	return idx, nil
}

// Unpin decreases a page's pin count and, if dirty, marks its frame
// for eventual flush. Once the pin count reaches zero the frame
// becomes eligible for CLOCK eviction.
func (p *Pool) Unpin(page *storage.Page, dirty bool) error {
	if page == nil {
		return nil
	}
	pageID := page.PageID()

	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pageID]
	if !ok {
		slog.Debug(logPrefix+"Unpin ignored, page not buffered", "pageID", pageID)
		return nil
	}
	f := p.frames[idx]
	if dirty {
		f.Dirty = true
	}
	if f.Pin.Dec() {
		p.replacer.SetEvictable(idx, true)
	}
	slog.Debug(logPrefix+"Unpin", "pageID", pageID, "dirty", f.Dirty, "pin", f.Pin.Get())
	return nil
}

// FreePage removes pageID from the buffer entirely. It must be unpinned.
func (p *Pool) FreePage(pageID uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pageID]
	if !ok {
		return nil
	}
	f := p.frames[idx]
	if f.Pin.Get() != 0 {
		return ErrPagePinned
	}
	p.replacer.Remove(idx)
	p.frames[idx] = nil
	delete(p.pageTable, pageID)
	slog.Debug(logPrefix+"FreePage", "pageID", pageID)
	return nil
}

// DestroyStorage drops every buffered frame for this pool's FileSet
// and removes its segment files from disk, per Tree.Destroy's need to
// reclaim storage rather than just unregister the directory entry.
func (p *Pool) DestroyStorage() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for idx, f := range p.frames {
		if f == nil {
			continue
		}
		p.replacer.Remove(idx)
		p.frames[idx] = nil
		delete(p.pageTable, f.PageID)
	}
	p.nextPageID = 0

	lfs, ok := p.fs.(storage.LocalFileSet)
	if !ok {
		slog.Debug(logPrefix + "DestroyStorage skipped: FileSet is not a LocalFileSet")
		return nil
	}
	if err := storage.RemoveAllSegments(lfs); err != nil {
		return fmt.Errorf("bufferpool: destroy storage: %w", err)
	}
	slog.Debug(logPrefix+"DestroyStorage removed segments", "dir", lfs.Dir, "base", lfs.Base)
	return nil
}

// FlushAll writes every dirty frame back to disk.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, f := range p.frames {
		if f == nil || !f.Dirty {
			continue
		}
		if err := p.sm.SavePage(p.fs, f.PageID, f.Page); err != nil {
			return err
		}
		f.Dirty = false
	}
	return nil
}
