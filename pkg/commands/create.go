package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	log "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/suddencreator/kibank/pkg/archive"
	"github.com/suddencreator/kibank/pkg/common"
)

var createOpts = &archive.CreateOptions{}

var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a bank from the specified directory",
	RunE:  runCreate,
}

func init() {
	CreateCmd.Flags().StringVarP(&createOpts.InputPath, "input", "i", "", "Input directory to bundle")
	CreateCmd.Flags().StringVarP(&createOpts.OutputPath, "output", "o", "", "Output .bank file (default: input dir name + .bank)")
	CreateCmd.Flags().StringVar(&createOpts.Metadata.Name, "name", "", "Bank name (used when generating index.json)")
	CreateCmd.Flags().StringVar(&createOpts.Metadata.Author, "author", "", "Bank author (used when generating index.json)")
	CreateCmd.Flags().StringVar(&createOpts.Metadata.Description, "description", "", "Bank description (used when generating index.json)")
	CreateCmd.Flags().StringVar(&createOpts.Metadata.BankID, "id", "", "Bank id (default: derived from author and name)")
	CreateCmd.Flags().BoolVarP(&createOpts.Verbose, "verbose", "v", false, "Verbose output")
	CreateCmd.MarkFlagRequired("input")
}

func runCreate(cmd *cobra.Command, args []string) error {
	info, err := os.Stat(createOpts.InputPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("input must be an existing directory: %s", createOpts.InputPath)
	}

	outputPath := createOpts.OutputPath
	if outputPath == "" {
		outputPath = filepath.Base(filepath.Clean(createOpts.InputPath)) + common.BankFileExtension
	}
	if !strings.EqualFold(filepath.Ext(outputPath), common.BankFileExtension) {
		return fmt.Errorf("output must end with %s: %s", common.BankFileExtension, outputPath)
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	// Serialize concurrent invocations targeting the same output file.
	// The lock lives on a sidecar path: renaming the temp bank over the
	// output would replace the very inode a lock on outputPath is held on.
	fileLock := flock.New(outputPath + ".lock")
	locked, err := fileLock.TryLock()
	if err != nil {
		return err
	}
	if !locked {
		return fmt.Errorf("output file is locked by another process: %s", outputPath)
	}
	defer fileLock.Unlock()

	// Write to a temp path and rename so readers never observe a
	// half-written bank.
	tempPath := fmt.Sprintf("%s.%s.tmp", outputPath, uuid.NewString())
	defer os.Remove(tempPath)

	opts := *createOpts
	opts.OutputPath = tempPath
	if err := archive.CreateBank(opts); err != nil {
		return err
	}
	if err := os.Rename(tempPath, outputPath); err != nil {
		return err
	}

	log.Info().Msgf("wrote bank: %s", outputPath)
	return nil
}
