package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/tapengine/pkg/tap"
)

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "List TAP states and their modes",
	Args:  cobra.NoArgs,
	RunE:  runStates,
}

func init() {
	rootCmd.AddCommand(statesCmd)
}

func runStates(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, s := range tap.States() {
		fmt.Fprintf(out, "%-18s %-6s %-6s %s\n",
			s, s.Exits(false), s.Exits(true), s.Modes())
	}
	return nil
}
