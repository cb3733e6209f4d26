package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/tapengine/pkg/script"
)

var runStats bool

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a TAP script",
	Long: `Execute a TAP script against the configured adapter. Every "read" prints
the bits it captured, first bit shifted out first.

Script syntax:
  # comment
  reset [trst]
  idle
  state <name>
  capture ir|dr
  ir <bits>          e.g. ir 0b0010
  dr <bits>          e.g. dr 0xDEADBEEF/32
  read dr <length>`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runStats, "stats", false, "print engine counters afterwards")
}

func runScript(cmd *cobra.Command, args []string) error {
	parser, err := script.NewParser()
	if err != nil {
		return err
	}
	prog, err := parser.ParseFile(args[0])
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := script.Run(s.eng, prog)
	out := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(out, "%d: %s", r.Pos.Line, r.Bits)
		if v, err := r.Bits.Uint64(); err == nil {
			fmt.Fprintf(out, " (0x%X)", v)
		}
		fmt.Fprintln(out)
	}
	if err != nil {
		logger.Error("script failed", "error", err, "state", s.eng.State())
		return err
	}

	if runStats {
		return s.printStats(out)
	}
	return nil
}
