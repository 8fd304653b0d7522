package common

import (
	"errors"
	"fmt"
)

var (
	// ErrNotABank means the file id bytes did not match: the input is not a
	// bank container at all.
	ErrNotABank = errors.New("file id mismatch: not a bank container")

	// ErrCorrupted means the corruption check bytes did not match: the file
	// was damaged in transit (line-ending conversion, truncation, etc).
	ErrCorrupted = errors.New("corruption check mismatch: bank file is damaged")

	// ErrUnsupportedVersion means the format version tag did not match.
	ErrUnsupportedVersion = errors.New("unsupported bank format version")

	// ErrUnexpectedEOF means a read returned fewer bytes than the format
	// declared, anywhere in the container.
	ErrUnexpectedEOF = errors.New("unexpected end of bank data")
)

// NameBoundsError reports a location whose name offset falls outside the
// filename block.
type NameBoundsError struct {
	NameOffset  uint64
	BlockLength uint64
}

func (e *NameBoundsError) Error() string {
	return fmt.Sprintf("name offset %d out of bounds (filename block is %d bytes)", e.NameOffset, e.BlockLength)
}

// OverlapError reports two file entries whose payload byte ranges intersect.
type OverlapError struct {
	A string
	B string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlapping data ranges: %q overlaps %q", e.A, e.B)
}

// TraversalError reports a bank-internal path containing a ".." segment.
type TraversalError struct {
	Path string
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("refusing path traversal entry: %q", e.Path)
}

// EscapeError reports a path that passed segment checks but still resolved
// outside its root.
type EscapeError struct {
	Path string
	Root string
}

func (e *EscapeError) Error() string {
	return fmt.Sprintf("refusing to write outside %q: %q", e.Root, e.Path)
}
