package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suddencreator/kibank/pkg/archive"
)

type ListCmdOptions struct {
	InputFile string
}

var listOpts = &ListCmdOptions{}

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the entries of a bank in table order",
	RunE:  runList,
}

func init() {
	ListCmd.Flags().StringVarP(&listOpts.InputFile, "input", "i", "", "Input .bank file")
	ListCmd.MarkFlagRequired("input")
}

func runList(cmd *cobra.Command, args []string) error {
	reader, err := archive.OpenBank(listOpts.InputFile)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, entry := range reader.Entries() {
		if entry.IsDir() {
			fmt.Printf("%12s  %s/\n", "-", entry.Name)
			continue
		}
		fmt.Printf("%12d  %s\n", entry.Loc.DataSize, entry.Name)
	}
	return nil
}
