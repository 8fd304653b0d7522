package common

import (
	"strings"

	"github.com/tidwall/btree"
)

// Location is one fixed-size record of the bank's location table. A zero
// DataSize marks a directory entry; any nonzero size marks a file.
// Locations are plain immutable data.
type Location struct {
	NameOffset uint64 // offset into the filename block
	DataOffset uint64 // absolute offset of the payload in the bank file
	DataSize   uint64 // payload length in bytes
}

// DataEnd returns the first byte offset past the payload.
func (l Location) DataEnd() uint64 {
	return l.DataOffset + l.DataSize
}

// BankEntry is the resolved form of a Location: the name from the filename
// block plus the record itself. Names are decoded tolerantly; invalid UTF-8
// sequences are preserved byte-for-byte rather than rejected.
type BankEntry struct {
	Name string
	Loc  Location
}

// IsDir returns true if the entry represents a directory.
func (e *BankEntry) IsDir() bool {
	return e.Loc.DataSize == 0
}

// IsFile returns true if the entry carries a payload.
func (e *BankEntry) IsFile() bool {
	return e.Loc.DataSize != 0
}

// BankIndex is a path-ordered index over a bank's entries.
type BankIndex struct {
	tree *btree.BTree
}

func NewBankIndex() *BankIndex {
	compare := func(a, b interface{}) bool {
		return a.(*BankEntry).Name < b.(*BankEntry).Name
	}
	return &BankIndex{tree: btree.New(compare)}
}

func (ix *BankIndex) Insert(entry *BankEntry) {
	ix.tree.Set(entry)
}

// Get returns the entry stored under the exact bank-internal path, or nil.
func (ix *BankIndex) Get(path string) *BankEntry {
	item := ix.tree.Get(&BankEntry{Name: path})
	if item == nil {
		return nil
	}
	return item.(*BankEntry)
}

func (ix *BankIndex) Len() int {
	return ix.tree.Len()
}

// Ascend walks all entries in path order.
func (ix *BankIndex) Ascend(fn func(entry *BankEntry) bool) {
	ix.tree.Ascend(ix.tree.Min(), func(a interface{}) bool {
		return fn(a.(*BankEntry))
	})
}

// ListDirectory returns the immediate children of the given directory path.
// Pass "" for the bank root.
func (ix *BankIndex) ListDirectory(path string) []*BankEntry {
	if path != "" && !strings.HasSuffix(path, PathSeparator) {
		path += PathSeparator
	}

	// Start just past the directory's own entry. \x00 sorts below every
	// other byte, so this pivot lands on the first child.
	pivot := &BankEntry{Name: path + "\x00"}
	pathLen := len(path)
	var entries []*BankEntry

	ix.tree.Ascend(pivot, func(a interface{}) bool {
		entry := a.(*BankEntry)

		if len(entry.Name) < pathLen || entry.Name[:pathLen] != path {
			return false
		}

		relative := entry.Name[pathLen:]
		if relative == "" || strings.Contains(relative, PathSeparator) {
			// Own entry or a deeper descendant, not an immediate child.
			return true
		}

		entries = append(entries, entry)
		return true
	})

	return entries
}

// BankMetadata is the model of the reserved root-level index.json entry.
// Pointer fields encode as null when absent.
type BankMetadata struct {
	Version     *uint32 `json:"version"`
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Author      string  `json:"author"`
	Description string  `json:"description"`
	Hash        *string `json:"hash"`
}
