package commands

import (
	"path/filepath"
	"strings"

	log "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/suddencreator/kibank/pkg/archive"
)

var extractOpts = &archive.ExtractOptions{}

var ExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a bank to the specified path",
	RunE:  runExtract,
}

func init() {
	ExtractCmd.Flags().StringVarP(&extractOpts.InputFile, "input", "i", "", "Input .bank file to extract")
	ExtractCmd.Flags().StringVarP(&extractOpts.OutputPath, "output", "o", "", "Output directory (default: bank path without extension)")
	ExtractCmd.Flags().BoolVar(&extractOpts.Overwrite, "overwrite", false, "Overwrite existing files")
	ExtractCmd.Flags().IntVar(&extractOpts.Workers, "workers", 0, "Number of extraction workers")
	ExtractCmd.Flags().BoolVarP(&extractOpts.Verbose, "verbose", "v", false, "Verbose output")
	ExtractCmd.MarkFlagRequired("input")
}

func runExtract(cmd *cobra.Command, args []string) error {
	opts := *extractOpts
	if opts.OutputPath == "" {
		opts.OutputPath = strings.TrimSuffix(opts.InputFile, filepath.Ext(opts.InputFile))
	}

	result, err := archive.ExtractBank(opts)
	if err != nil {
		return err
	}

	log.Info().Msgf("extracted %d files to: %s", result.Extracted, opts.OutputPath)
	if result.Skipped > 0 {
		log.Info().Msgf("skipped %d existing files (use --overwrite to replace)", result.Skipped)
	}
	return nil
}
