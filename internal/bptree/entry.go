package bptree

import "github.com/adbkit/bptreefile/internal/bx"

// RecordID is the opaque external record identifier a leaf entry
// points at. This package never interprets PageNo/SlotNo beyond
// storing and comparing them.
type RecordID struct {
	PageNo int32
	SlotNo int32
}

const (
	// LeafEntrySize is the fixed on-disk width of one leaf entry: a
	// 4-byte key, an 8-byte RecordID, and 4 reserved/padding bytes to
	// match the original C++ struct's aligned size
	// (sizeof(int) + sizeof(RecordID), padded).
	LeafEntrySize = 16

	// IndexEntrySize is the fixed on-disk width of one index entry: a
	// 4-byte key, a 4-byte child page number, and 4 reserved/padding
	// bytes (sizeof(int) + sizeof(PageID), padded).
	IndexEntrySize = 12
)

// LeafEntry is a (key, rid) pair stored in a leaf node, sorted by Key.
// Nothing in this package keeps a pair from occurring twice.
type LeafEntry struct {
	Key int32
	Rid RecordID
}

// IndexEntry is a (key, child) separator stored in an index node. The
// entry at position i bounds the subtree rooted at Child to keys >=
// Key (and < the next entry's Key, or unbounded for the last entry).
type IndexEntry struct {
	Key   int32
	Child int32
}

// EncodeLeafEntry writes e into a fresh LeafEntrySize-byte slice.
func EncodeLeafEntry(e LeafEntry) []byte {
	buf := make([]byte, LeafEntrySize)
	bx.PutU32At(buf, 0, uint32(e.Key))
	bx.PutU32At(buf, 4, uint32(e.Rid.PageNo))
	bx.PutU32At(buf, 8, uint32(e.Rid.SlotNo))
	return buf
}

// DecodeLeafEntry reads a LeafEntrySize-byte slice back into a LeafEntry.
func DecodeLeafEntry(buf []byte) LeafEntry {
	return LeafEntry{
		Key: int32(bx.U32At(buf, 0)),
		Rid: RecordID{
			PageNo: int32(bx.U32At(buf, 4)),
			SlotNo: int32(bx.U32At(buf, 8)),
		},
	}
}

// EncodeIndexEntry writes e into a fresh IndexEntrySize-byte slice.
func EncodeIndexEntry(e IndexEntry) []byte {
	buf := make([]byte, IndexEntrySize)
	bx.PutU32At(buf, 0, uint32(e.Key))
	bx.PutU32At(buf, 4, uint32(e.Child))
	return buf
}

// DecodeIndexEntry reads an IndexEntrySize-byte slice back into an IndexEntry.
func DecodeIndexEntry(buf []byte) IndexEntry {
	return IndexEntry{
		Key:   int32(bx.U32At(buf, 0)),
		Child: int32(bx.U32At(buf, 4)),
	}
}
