package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/tapengine/pkg/tap"
)

var pathCmd = &cobra.Command{
	Use:   "path <from> <to>",
	Short: "Show the shortest TMS sequence between two TAP states",
	Long: `Compute the shortest TMS sequence between two TAP states, the same one the
engine would clock. Bits are printed in transmission order.

Example:
  tapctl path test_logic_reset shift_ir`,
	Args: cobra.ExactArgs(2),
	RunE: runPath,
}

func init() {
	rootCmd.AddCommand(pathCmd)
}

func runPath(cmd *cobra.Command, args []string) error {
	from, err := tap.ParseState(args[0])
	if err != nil {
		return err
	}
	to, err := tap.ParseState(args[1])
	if err != nil {
		return err
	}

	m := tap.NewStateMachine()
	seq, err := m.FindPathFrom(from, to)
	if err != nil {
		return err
	}
	tms, err := tap.GetEvents(seq)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "TMS:    %s (%d clocks)\n", tms, len(tms))
	fmt.Fprintf(out, "States: %s\n", tap.Sequence{TMS: tms, States: seq})
	return nil
}
