package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/suddencreator/kibank/pkg/common"
)

// PayloadSource supplies a file entry's bytes, either from a path on disk or
// from an in-memory buffer. Exactly one of the two is set.
type PayloadSource struct {
	Path string
	Data []byte
}

// InMemory wraps a byte buffer as a payload source.
func InMemory(data []byte) PayloadSource {
	return PayloadSource{Data: data}
}

// FileBacked wraps a filesystem path as a payload source.
func FileBacked(path string) PayloadSource {
	return PayloadSource{Path: path}
}

// Open returns a sequential reader over the payload bytes.
func (s PayloadSource) Open() (io.ReadCloser, error) {
	if s.Path != "" {
		return os.Open(s.Path)
	}
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}

// FileEntry is one logical file destined for a bank: a bank-internal
// relative path plus a payload source of known length.
type FileEntry struct {
	RelPath string
	Size    uint64
	Source  PayloadSource
}

// Layout is a fully computed bank image minus the payload bytes: the
// location table, the filename block, and the files in table order.
type Layout struct {
	Locations []common.Location
	NameBlock []byte
	Dirs      []string
	Files     []FileEntry
}

// LocationCount returns the number of location records in the table.
func (l *Layout) LocationCount() uint64 {
	return uint64(len(l.Locations))
}

// DataStart returns the absolute offset of the first payload byte.
func (l *Layout) DataStart() uint64 {
	return common.BankHeaderLength + 8 + l.LocationCount()*common.LocationSize + 8 + uint64(len(l.NameBlock))
}

// BuildLayout computes a deterministic bank layout from logical directories
// and files. Directories are de-duplicated together with every ancestor
// implied by a file or directory path and sorted lexicographically; files
// are sorted case-insensitively by path. The location table lists all
// directories first, then all files, and payloads are laid out contiguously
// in table order starting at DataStart.
func BuildLayout(dirs []string, files []FileEntry) (*Layout, error) {
	dirSet := make(map[string]struct{})

	addWithAncestors := func(rel string) {
		for rel != "" {
			dirSet[rel] = struct{}{}
			slash := strings.LastIndex(rel, common.PathSeparator)
			if slash < 0 {
				break
			}
			rel = rel[:slash]
		}
	}

	for _, dir := range dirs {
		sanitized, err := SanitizeBankPath(dir)
		if err != nil {
			return nil, err
		}
		if sanitized != "" {
			addWithAncestors(sanitized)
		}
	}

	sortedFiles := make([]FileEntry, 0, len(files))
	for _, file := range files {
		sanitized, err := SanitizeBankPath(file.RelPath)
		if err != nil {
			return nil, err
		}
		if sanitized == "" {
			return nil, fmt.Errorf("file entry has empty path: %q", file.RelPath)
		}
		file.RelPath = sanitized
		if slash := strings.LastIndex(sanitized, common.PathSeparator); slash >= 0 {
			addWithAncestors(sanitized[:slash])
		}
		sortedFiles = append(sortedFiles, file)
	}

	sortedDirs := make([]string, 0, len(dirSet))
	for dir := range dirSet {
		sortedDirs = append(sortedDirs, dir)
	}
	sort.Strings(sortedDirs)

	sort.Slice(sortedFiles, func(i, j int) bool {
		a, b := strings.ToLower(sortedFiles[i].RelPath), strings.ToLower(sortedFiles[j].RelPath)
		if a == b {
			return sortedFiles[i].RelPath < sortedFiles[j].RelPath
		}
		return a < b
	})

	layout := &Layout{Dirs: sortedDirs, Files: sortedFiles}

	// Filename block: every location's name in table order, NUL-terminated.
	var nameBlock []byte
	nameOffsets := make([]uint64, 0, len(sortedDirs)+len(sortedFiles))
	appendName := func(name string) {
		nameOffsets = append(nameOffsets, uint64(len(nameBlock)))
		nameBlock = append(nameBlock, name...)
		nameBlock = append(nameBlock, 0x00)
	}
	for _, dir := range sortedDirs {
		appendName(dir)
	}
	for _, file := range sortedFiles {
		appendName(file.RelPath)
	}
	layout.NameBlock = nameBlock

	layout.Locations = make([]common.Location, 0, len(nameOffsets))
	for i := range sortedDirs {
		layout.Locations = append(layout.Locations, common.Location{NameOffset: nameOffsets[i]})
	}
	for i, file := range sortedFiles {
		layout.Locations = append(layout.Locations, common.Location{
			NameOffset: nameOffsets[len(sortedDirs)+i],
			DataSize:   file.Size,
		})
	}

	// With the table and name block final, lay the payloads out
	// contiguously from the data region's start.
	cursor := layout.DataStart()
	for i := len(sortedDirs); i < len(layout.Locations); i++ {
		layout.Locations[i].DataOffset = cursor
		cursor += layout.Locations[i].DataSize
	}

	return layout, nil
}
