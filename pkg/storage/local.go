package storage

import (
	"fmt"
	"os"

	"github.com/suddencreator/kibank/pkg/archive"
	"github.com/suddencreator/kibank/pkg/common"
)

// LocalBankStorage serves payload reads from a bank file on local disk.
// Reads go through ReadAt, so one storage instance may be shared across
// goroutines.
type LocalBankStorage struct {
	bankPath   string
	index      *common.BankIndex
	fileHandle *os.File
}

func NewLocalBankStorage(opts BankStorageOpts) (*LocalBankStorage, error) {
	reader, err := archive.OpenBank(opts.BankPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	// Keep a dedicated handle; the reader's handle closes with it.
	fileHandle, err := os.Open(opts.BankPath)
	if err != nil {
		return nil, err
	}

	return &LocalBankStorage{
		bankPath:   opts.BankPath,
		index:      reader.Index(),
		fileHandle: fileHandle,
	}, nil
}

// ReadFile reads len(dest) bytes of the entry's payload starting at offset
// into the payload. Reads are clamped to the entry's declared size.
func (s *LocalBankStorage) ReadFile(entry *common.BankEntry, dest []byte, offset int64) (int, error) {
	if !entry.IsFile() {
		return 0, nil
	}
	if offset < 0 || uint64(offset) >= entry.Loc.DataSize {
		return 0, nil
	}
	if remaining := entry.Loc.DataSize - uint64(offset); uint64(len(dest)) > remaining {
		dest = dest[:remaining]
	}

	n, err := s.fileHandle.ReadAt(dest, int64(entry.Loc.DataOffset)+offset)
	if err != nil {
		return n, fmt.Errorf("unable to read data from bank: %w", err)
	}
	return n, nil
}

func (s *LocalBankStorage) Index() *common.BankIndex {
	return s.index
}

func (s *LocalBankStorage) Cleanup() error {
	return s.fileHandle.Close()
}
