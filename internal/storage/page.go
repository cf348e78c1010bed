package storage

import "github.com/adbkit/bptreefile/internal/bx"

// Page layout, header-first, slot directory growing up, tuple data
// growing down from the end of the page:
//
// +------------------+ 0
// | tag (1) pad (1)  |
// | count (2)        |
// | pageID (4)       |
// | prev (4)         |
// | next (4)         |
// | lower (2)        |
// | upper (2)        |
// | reserved (4)     |
// +------------------+ HeaderSize (24) <-- slot directory starts here
// | slot[0] slot[1]..| (offset uint16, length uint16) each
// +------------------+ <-- lower
// |   free space     |
// +------------------+ <-- upper
// | tuple data       |
// | (grows down)     |
// +------------------+ PageSize
type Page struct {
	Buf []byte
}

const (
	offTag    = 0
	offCount  = 2
	offPageID = 4
	offPrev   = 8
	offNext   = 12
	offLower  = 16
	offUpper  = 18
)

// NewPage wraps buf (must be exactly PageSize bytes) and, if it looks
// uninitialized, resets its header for pageID.
func NewPage(buf []byte, pageID uint32) (*Page, error) {
	if len(buf) != PageSize {
		return nil, ErrWriteExceedPageSize
	}
	p := &Page{Buf: buf}
	if p.IsUninitialized() {
		p.Reset(pageID, NodeUnused)
	}
	return p, nil
}

// Reset reinitializes the page header, discarding any existing slots
// and tuple data. Used when a page is (re)allocated as a leaf or index
// node.
func (p *Page) Reset(pageID uint32, tag NodeType) {
	for i := range p.Buf {
		p.Buf[i] = 0
	}
	p.Buf[offTag] = byte(tag)
	bx.PutU16At(p.Buf, offCount, 0)
	bx.PutU32At(p.Buf, offPageID, pageID)
	p.SetPrev(-1)
	p.SetNext(-1)
	bx.PutU16At(p.Buf, offLower, HeaderSize)
	bx.PutU16At(p.Buf, offUpper, PageSize)
}

func (p *Page) IsUninitialized() bool {
	return p.lower() == 0 && p.upper() == 0
}

func (p *Page) Tag() NodeType     { return NodeType(p.Buf[offTag]) }
func (p *Page) SetTag(t NodeType) { p.Buf[offTag] = byte(t) }

func (p *Page) PageID() uint32 { return bx.U32At(p.Buf, offPageID) }

func (p *Page) Prev() int32       { return int32(bx.U32At(p.Buf, offPrev)) }
func (p *Page) SetPrev(pid int32) { bx.PutU32At(p.Buf, offPrev, uint32(pid)) }
func (p *Page) Next() int32       { return int32(bx.U32At(p.Buf, offNext)) }
func (p *Page) SetNext(pid int32) { bx.PutU32At(p.Buf, offNext, uint32(pid)) }

func (p *Page) Count() int { return int(bx.U16At(p.Buf, offCount)) }

func (p *Page) setCount(n int) { bx.PutU16At(p.Buf, offCount, uint16(n)) }

func (p *Page) lower() uint16     { return bx.U16At(p.Buf, offLower) }
func (p *Page) setLower(v uint16) { bx.PutU16At(p.Buf, offLower, v) }
func (p *Page) upper() uint16     { return bx.U16At(p.Buf, offUpper) }
func (p *Page) setUpper(v uint16) { bx.PutU16At(p.Buf, offUpper, v) }

// FreeSpace returns the number of bytes available between the slot
// directory and the tuple data region.
func (p *Page) FreeSpace() int {
	return int(p.upper()) - int(p.lower())
}

// AvailableSpace mirrors the half-full check used by split/underflow
// decisions: free bytes currently unused in the page payload.
func (p *Page) AvailableSpace() int {
	return p.FreeSpace()
}

func (p *Page) slotOff(i int) int { return HeaderSize + i*SlotSize }

func (p *Page) slotAt(i int) (offset, length uint16) {
	o := p.slotOff(i)
	return bx.U16At(p.Buf, o), bx.U16At(p.Buf, o+2)
}

func (p *Page) putSlot(i int, offset, length uint16) {
	o := p.slotOff(i)
	bx.PutU16At(p.Buf, o, offset)
	bx.PutU16At(p.Buf, o+2, length)
}

// ReadAt returns the bytes stored at slot i.
func (p *Page) ReadAt(i int) ([]byte, error) {
	if i < 0 || i >= p.Count() {
		return nil, ErrBadSlot
	}
	off, length := p.slotAt(i)
	return p.Buf[off : off+length], nil
}

// InsertAt inserts tup as a new slot at logical position i (0 <= i <=
// Count()), shifting the slot directory entries at and after i. Tuple
// bytes always land freshly in the data region; no compaction is
// attempted, matching the teacher's append-and-grow-down page.
func (p *Page) InsertAt(i int, tup []byte) error {
	n := p.Count()
	if i < 0 || i > n {
		return ErrBadSlot
	}
	need := len(tup) + SlotSize
	if p.FreeSpace() < need {
		return ErrPageFull
	}
	newUpper := p.upper() - uint16(len(tup))
	copy(p.Buf[newUpper:], tup)
	p.setUpper(newUpper)

	for j := n; j > i; j-- {
		off, length := p.slotAt(j - 1)
		p.putSlot(j, off, length)
	}
	p.putSlot(i, newUpper, uint16(len(tup)))
	p.setLower(p.lower() + SlotSize)
	p.setCount(n + 1)
	return nil
}

// DeleteAt removes the slot at logical position i, shifting later
// slots down and compacting the vacated tuple bytes out of the data
// region so FreeSpace reflects only live entries. Tuples are packed
// contiguously from upper to PageSize in insertion order, so removing
// one just shifts everything above it (at lower addresses, inserted
// later) up by the freed length and rewrites their slot offsets.
func (p *Page) DeleteAt(i int) error {
	n := p.Count()
	if i < 0 || i >= n {
		return ErrBadSlot
	}
	delOff, delLen := p.slotAt(i)
	upper := p.upper()

	if delOff > upper {
		copy(p.Buf[upper+delLen:delOff+delLen], p.Buf[upper:delOff])
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			off, length := p.slotAt(j)
			if off < delOff {
				p.putSlot(j, off+delLen, length)
			}
		}
	}
	p.setUpper(upper + delLen)

	for j := i; j < n-1; j++ {
		off, length := p.slotAt(j + 1)
		p.putSlot(j, off, length)
	}
	p.setLower(p.lower() - SlotSize)
	p.setCount(n - 1)
	return nil
}

// UpdateAt overwrites the bytes at slot i in place. The replacement
// must be exactly the same length as the original tuple: every caller
// in this package deals exclusively in fixed-width entries.
func (p *Page) UpdateAt(i int, tup []byte) error {
	if i < 0 || i >= p.Count() {
		return ErrBadSlot
	}
	off, length := p.slotAt(i)
	if int(length) != len(tup) {
		return ErrPageCorrupted
	}
	copy(p.Buf[off:off+length], tup)
	return nil
}

// DebugString renders the page header and slot directory for
// debugging and the CLI's print command.
func (p *Page) DebugString() string {
	return debugPage(p)
}
