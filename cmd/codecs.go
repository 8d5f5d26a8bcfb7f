package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/encbench/internal/codec/soft"
)

// CreateCodecsCmd creates the codecs command.
func CreateCodecsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codecs",
		Short: "List available encoders",
		RunE: func(_ *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMIME\tHARDWARE\tDESCRIPTION")
			for _, info := range soft.NewRegistry().List() {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", info.Name, info.Mime, info.Hardware, info.Description)
			}
			return w.Flush()
		},
	}
}
