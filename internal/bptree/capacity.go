package bptree

import "github.com/adbkit/bptreefile/internal/storage"

// maxEntriesPerPage returns the largest n such that n slots plus n
// entries of entrySize fit inside one page's payload.
func maxEntriesPerPage(entrySize int) int {
	return storage.PagePayload / (storage.SlotSize + entrySize)
}

func maxLeafEntriesPerPage() int {
	return maxEntriesPerPage(LeafEntrySize)
}

func maxIndexEntriesPerPage() int {
	return maxEntriesPerPage(IndexEntrySize)
}

// halfFull reports whether a node with the given available space (in
// bytes, as reported by storage.Page.AvailableSpace) has at least half
// of its payload occupied by entries. A node for which this is false
// is a candidate for redistribution/merge.
func halfFull(availableSpace int) bool {
	return availableSpace <= storage.PagePayload/2
}
