package archive

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	log "github.com/rs/zerolog/log"

	"github.com/suddencreator/kibank/pkg/common"
)

type CreateOptions struct {
	InputPath  string
	OutputPath string
	Metadata   MetadataOptions
	Verbose    bool
}

// CreateBank walks the input directory and serializes it into a new bank at
// the output path, generating a root index.json when the tree has none.
// The output is deterministic: identical input trees and metadata produce
// byte-identical banks.
func CreateBank(opts CreateOptions) error {
	dirs, files, err := collectTree(opts.InputPath, opts.Verbose)
	if err != nil {
		return err
	}

	files, err = ensureMetadataAndBackground(opts.InputPath, files, opts.Metadata)
	if err != nil {
		return err
	}

	layout, err := BuildLayout(dirs, files)
	if err != nil {
		return err
	}

	if opts.Verbose {
		log.Info().
			Uint64("locations", layout.LocationCount()).
			Int("files", len(layout.Files)).
			Int("dirs", len(layout.Dirs)).
			Msgf("writing bank: %s", opts.OutputPath)
	}

	return WriteBank(layout, opts.OutputPath)
}

// collectTree enumerates the source directory into logical directory and
// file entries with bank-internal relative paths. Symlinks and other
// non-regular files are skipped.
func collectTree(sourcePath string, verbose bool) ([]string, []FileEntry, error) {
	var dirs []string
	var files []FileEntry

	err := godirwalk.Walk(sourcePath, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			rel := strings.Trim(strings.TrimPrefix(path, sourcePath), string(filepath.Separator))
			if rel == "" {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if de.IsDir() {
				dirs = append(dirs, rel)
				return nil
			}
			if de.IsSymlink() {
				if verbose {
					log.Info().Msgf("skipping symlink: %s", path)
				}
				return nil
			}
			if !de.IsRegular() {
				if verbose {
					log.Info().Msgf("skipping special file: %s", path)
				}
				return nil
			}

			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			files = append(files, FileEntry{
				RelPath: rel,
				Size:    uint64(info.Size()),
				Source:  FileBacked(path),
			})
			return nil
		},
		Unsorted: false,
	})
	if err != nil {
		return nil, nil, err
	}

	return dirs, files, nil
}

// ensureMetadataAndBackground adds a generated index.json when the listing
// has no root-level one, and a root background image when one exists on
// disk but is absent from the listing.
func ensureMetadataAndBackground(sourcePath string, files []FileEntry, meta MetadataOptions) ([]FileEntry, error) {
	existing := make(map[string]struct{}, len(files))
	for _, file := range files {
		existing[strings.ToLower(file.RelPath)] = struct{}{}
	}

	if _, ok := existing[common.MetadataFileName]; !ok {
		metaBytes, err := BuildMetadataBytes(meta)
		if err != nil {
			return nil, err
		}
		files = append(files, FileEntry{
			RelPath: common.MetadataFileName,
			Size:    uint64(len(metaBytes)),
			Source:  InMemory(metaBytes),
		})
	}

	if background := FindBackgroundFile(sourcePath); background != "" {
		name := filepath.Base(background)
		if _, ok := existing[strings.ToLower(name)]; !ok {
			info, err := os.Stat(background)
			if err != nil {
				return nil, err
			}
			files = append(files, FileEntry{
				RelPath: name,
				Size:    uint64(info.Size()),
				Source:  FileBacked(background),
			})
		}
	}

	return files, nil
}

// WriteBank serializes a computed layout to the output path, creating
// parent directories as needed and replacing any existing file. Payloads
// are streamed from their sources in table order; a source running short of
// its declared size aborts the write.
func WriteBank(layout *Layout, outputPath string) error {
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	writer := bufio.NewWriterSize(outFile, 512*1024)

	for _, field := range [][]byte{common.BankFileID, common.CorruptionCheckBytes, common.FormatVersionBytes} {
		if _, err := writer.Write(field); err != nil {
			return err
		}
	}

	if err := writeUint64(writer, layout.LocationCount()); err != nil {
		return err
	}
	for _, loc := range layout.Locations {
		for _, field := range []uint64{loc.NameOffset, loc.DataOffset, loc.DataSize} {
			if err := writeUint64(writer, field); err != nil {
				return err
			}
		}
	}

	if err := writeUint64(writer, uint64(len(layout.NameBlock))); err != nil {
		return err
	}
	if _, err := writer.Write(layout.NameBlock); err != nil {
		return err
	}

	for _, file := range layout.Files {
		if err := copyPayload(writer, file); err != nil {
			return err
		}
	}

	return writer.Flush()
}

// copyPayload streams one file's payload from its source, requiring exactly
// the declared number of bytes.
func copyPayload(w io.Writer, file FileEntry) error {
	src, err := file.Source.Open()
	if err != nil {
		return fmt.Errorf("opening payload source for %q: %w", file.RelPath, err)
	}
	defer src.Close()

	if _, err := io.CopyN(w, src, int64(file.Size)); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("payload source for %q ended early: %w", file.RelPath, common.ErrUnexpectedEOF)
		}
		return fmt.Errorf("writing payload of %q: %w", file.RelPath, err)
	}
	return nil
}

func writeUint64(w io.Writer, v uint64) error {
	return binary.Write(w, binary.LittleEndian, v)
}
