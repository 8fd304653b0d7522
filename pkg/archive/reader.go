package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/suddencreator/kibank/pkg/common"
)

// BankReader parses a bank file into its entry list and serves payload
// reads against it. Each reader owns its file handle exclusively for its
// lifetime; payload reads use ReadAt and are safe to issue from multiple
// goroutines against one reader.
type BankReader struct {
	path    string
	file    *os.File
	entries []*common.BankEntry
}

// OpenBank opens and fully parses a bank file. The returned reader holds
// the file open for payload reads until Close.
func OpenBank(path string) (*BankReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	entries, err := ParseBank(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &BankReader{path: path, file: file, entries: entries}, nil
}

// Entries returns the parsed entries in on-disk location-table order.
func (r *BankReader) Entries() []*common.BankEntry {
	return r.entries
}

// Index builds a path-ordered index over the parsed entries.
func (r *BankReader) Index() *common.BankIndex {
	index := common.NewBankIndex()
	for _, entry := range r.entries {
		index.Insert(entry)
	}
	return index
}

// ReadFileBytes returns the full payload of a file entry. Directory entries
// yield empty bytes.
func (r *BankReader) ReadFileBytes(entry *common.BankEntry) ([]byte, error) {
	if !entry.IsFile() {
		return []byte{}, nil
	}

	data := make([]byte, entry.Loc.DataSize)
	if _, err := r.file.ReadAt(data, int64(entry.Loc.DataOffset)); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("reading payload of %q: %w", entry.Name, common.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("reading payload of %q: %w", entry.Name, err)
	}
	return data, nil
}

func (r *BankReader) Close() error {
	return r.file.Close()
}

// ParseBank reads a bank's header, location table, and filename block from
// the start of r, returning resolved entries in location-table order. It is
// a strict forward-only single pass; payload bytes are not touched.
func ParseBank(r io.Reader) ([]*common.BankEntry, error) {
	if err := readHeader(r); err != nil {
		return nil, err
	}

	locationCount, err := readUint64(r)
	if err != nil {
		return nil, err
	}

	locations := make([]common.Location, 0)
	record := make([]byte, common.LocationSize)
	for i := uint64(0); i < locationCount; i++ {
		if err := readExact(r, record); err != nil {
			return nil, err
		}
		locations = append(locations, common.Location{
			NameOffset: binary.LittleEndian.Uint64(record[0:8]),
			DataOffset: binary.LittleEndian.Uint64(record[8:16]),
			DataSize:   binary.LittleEndian.Uint64(record[16:24]),
		})
	}

	blockLength, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	nameBlock := make([]byte, blockLength)
	if err := readExact(r, nameBlock); err != nil {
		return nil, err
	}

	entries := make([]*common.BankEntry, 0, len(locations))
	for _, loc := range locations {
		name, err := resolveName(nameBlock, loc.NameOffset)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &common.BankEntry{Name: name, Loc: loc})
	}

	if err := checkOverlaps(entries); err != nil {
		return nil, err
	}

	return entries, nil
}

// readHeader validates the three fixed header fields in order. Each field
// mismatch is a distinct condition: wrong file id, damaged file, or an
// unsupported version.
func readHeader(r io.Reader) error {
	fileID := make([]byte, len(common.BankFileID))
	if err := readExact(r, fileID); err != nil {
		return err
	}
	if !bytes.Equal(fileID, common.BankFileID) {
		return common.ErrNotABank
	}

	check := make([]byte, len(common.CorruptionCheckBytes))
	if err := readExact(r, check); err != nil {
		return err
	}
	if !bytes.Equal(check, common.CorruptionCheckBytes) {
		return common.ErrCorrupted
	}

	version := make([]byte, len(common.FormatVersionBytes))
	if err := readExact(r, version); err != nil {
		return err
	}
	if !bytes.Equal(version, common.FormatVersionBytes) {
		return common.ErrUnsupportedVersion
	}

	return nil
}

// resolveName extracts the NUL-terminated name at the given offset. A name
// missing its terminator runs to the block end; the declared block length is
// authoritative. Invalid UTF-8 passes through untouched.
func resolveName(block []byte, offset uint64) (string, error) {
	if offset >= uint64(len(block)) {
		return "", &common.NameBoundsError{NameOffset: offset, BlockLength: uint64(len(block))}
	}

	name := block[offset:]
	if end := bytes.IndexByte(name, 0x00); end >= 0 {
		name = name[:end]
	}
	return string(name), nil
}

// checkOverlaps verifies no two file payload ranges intersect. It sorts a
// copy by data offset; the caller's entry order is preserved. Touching
// ranges (one ends exactly where the next begins) are legal.
func checkOverlaps(entries []*common.BankEntry) error {
	files := make([]*common.BankEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsFile() {
			files = append(files, entry)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Loc.DataOffset < files[j].Loc.DataOffset
	})

	for i := 1; i < len(files); i++ {
		prev, next := files[i-1], files[i]
		if prev.Loc.DataEnd() > next.Loc.DataOffset {
			return &common.OverlapError{A: prev.Name, B: next.Name}
		}
	}
	return nil
}

func readUint64(r io.Reader) (uint64, error) {
	buf := make([]byte, 8)
	if err := readExact(r, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func readExact(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return common.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}
