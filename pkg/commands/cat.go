package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/suddencreator/kibank/pkg/storage"
)

type CatCmdOptions struct {
	InputFile string
}

var catOpts = &CatCmdOptions{}

var CatCmd = &cobra.Command{
	Use:   "cat <entry-path>",
	Short: "Write one entry's payload to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runCat,
}

func init() {
	CatCmd.Flags().StringVarP(&catOpts.InputFile, "input", "i", "", "Input .bank file")
	CatCmd.MarkFlagRequired("input")
}

func runCat(cmd *cobra.Command, args []string) error {
	s, err := storage.NewBankStorage(storage.BankStorageOpts{BankPath: catOpts.InputFile})
	if err != nil {
		return err
	}
	defer s.Cleanup()

	entry := s.Index().Get(args[0])
	if entry == nil {
		return fmt.Errorf("no such entry in bank: %s", args[0])
	}
	if entry.IsDir() {
		return fmt.Errorf("entry is a directory: %s", args[0])
	}

	buf := make([]byte, 512*1024)
	var offset int64
	for uint64(offset) < entry.Loc.DataSize {
		n, err := s.ReadFile(entry, buf, offset)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrUnexpectedEOF
		}
		if _, err := os.Stdout.Write(buf[:n]); err != nil {
			return err
		}
		offset += int64(n)
	}
	return nil
}
