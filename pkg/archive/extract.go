package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	log "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/suddencreator/kibank/pkg/common"
)

const defaultExtractWorkers = 4

type ExtractOptions struct {
	InputFile  string
	OutputPath string
	Overwrite  bool
	Workers    int
	Verbose    bool
}

// ExtractResult counts files written and files skipped because they already
// existed and overwrite was off.
type ExtractResult struct {
	Extracted int
	Skipped   int
}

// ExtractBank materializes a bank's tree under the output directory.
// Directory entries are created first, then file payloads are extracted by
// a pool of workers, each reading through its own handle on the bank file.
// Every target path passes SafeJoin before anything touches the filesystem.
func ExtractBank(opts ExtractOptions) (*ExtractResult, error) {
	reader, err := OpenBank(opts.InputFile)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if err := os.MkdirAll(opts.OutputPath, 0755); err != nil {
		return nil, err
	}

	// Validate every target path up front, before the first write.
	targets := make(map[*common.BankEntry]string, len(reader.Entries()))
	for _, entry := range reader.Entries() {
		target, err := SafeJoin(opts.OutputPath, entry.Name)
		if err != nil {
			return nil, err
		}
		targets[entry] = target
	}

	var fileEntries []*common.BankEntry
	for _, entry := range reader.Entries() {
		if entry.IsDir() {
			if err := os.MkdirAll(targets[entry], 0755); err != nil {
				return nil, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(targets[entry]), 0755); err != nil {
			return nil, err
		}
		fileEntries = append(fileEntries, entry)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultExtractWorkers
	}
	if workers > len(fileEntries) && len(fileEntries) > 0 {
		workers = len(fileEntries)
	}

	var extracted, skipped atomic.Int64
	work := make(chan *common.BankEntry)

	group, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			// One handle per worker: payload reads never share seek state.
			bankFile, err := os.Open(opts.InputFile)
			if err != nil {
				return err
			}
			defer bankFile.Close()

			for entry := range work {
				if err := extractOne(bankFile, entry, targets[entry], opts, &extracted, &skipped); err != nil {
					return err
				}
			}
			return nil
		})
	}

	group.Go(func() error {
		defer close(work)
		for _, entry := range fileEntries {
			select {
			case work <- entry:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return &ExtractResult{
		Extracted: int(extracted.Load()),
		Skipped:   int(skipped.Load()),
	}, nil
}

func extractOne(bankFile *os.File, entry *common.BankEntry, target string, opts ExtractOptions, extracted, skipped *atomic.Int64) error {
	if _, err := os.Lstat(target); err == nil && !opts.Overwrite {
		skipped.Add(1)
		return nil
	}

	if opts.Verbose {
		log.Info().Msgf("extracting: %s", entry.Name)
	}

	outFile, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating %q: %w", entry.Name, err)
	}
	defer outFile.Close()

	section := io.NewSectionReader(bankFile, int64(entry.Loc.DataOffset), int64(entry.Loc.DataSize))
	copied, err := io.Copy(outFile, section)
	if err != nil {
		return fmt.Errorf("extracting %q: %w", entry.Name, err)
	}
	if uint64(copied) != entry.Loc.DataSize {
		return fmt.Errorf("extracting %q: %w", entry.Name, common.ErrUnexpectedEOF)
	}

	extracted.Add(1)
	return nil
}
