package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/encbench/internal/version"
)

// CreateVersionCmd creates the version command.
func CreateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(c *cobra.Command, _ []string) {
			fmt.Fprintln(c.OutOrStdout(), version.Long())
		},
	}
}
