package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/tapengine/pkg/jtag"
)

var (
	deviceCount int
	idcodeStats bool
)

var idcodeCmd = &cobra.Command{
	Use:   "idcode",
	Short: "Read device IDCODEs",
	Long: `Reset the TAP, which selects the IDCODE register, and shift out one 32-bit
word per expected device. The device closest to TDO is listed first.

Examples:
  tapctl idcode
  tapctl idcode --adapter cmsis-dap --count 2`,
	Args: cobra.NoArgs,
	RunE: runIDCode,
}

func init() {
	rootCmd.AddCommand(idcodeCmd)

	idcodeCmd.Flags().IntVarP(&deviceCount, "count", "n", 1, "expected number of devices in chain")
	idcodeCmd.Flags().BoolVar(&idcodeStats, "stats", false, "print engine counters afterwards")
}

func runIDCode(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	codes, err := jtag.ScanIDCodes(s.eng, deviceCount)
	if err != nil {
		return fmt.Errorf("IDCODE scan failed: %w", err)
	}

	out := cmd.OutOrStdout()
	for i, raw := range codes {
		id := jtag.ParseIDCode(raw)
		marker := ""
		if !id.Valid {
			marker = " (no IDCODE marker bit)"
		}
		fmt.Fprintf(out, "Device %d: %s%s\n", i, id, marker)
	}

	if idcodeStats {
		return s.printStats(out)
	}
	return nil
}
