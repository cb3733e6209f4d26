package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/tapengine/internal/config"
	"github.com/OpenTraceLab/tapengine/internal/logging"
)

var (
	// Global flags
	configPath  string
	verbose     bool
	adapterKind string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tapctl",
	Short: "JTAG TAP controller engine",
	Long: `Drive IEEE 1149.1 TAP controllers through a CMSIS-DAP probe or the
built-in simulator: plan state transitions, read IDCODEs and run TAP scripts.

Examples:
  tapctl states                                  # List TAP states and their modes
  tapctl path run_test_idle shift_ir             # Show the TMS path between two states
  tapctl idcode --adapter cmsis-dap              # Read the first IDCODE from a probe
  tapctl run scan.tap                            # Run a TAP script on the simulator`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&adapterKind, "adapter", "a", "",
		"JTAG adapter (simulator, cmsis-dap); overrides the configuration")
}

// setup loads the configuration and builds the logger before any command.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}

	if adapterKind != "" {
		cfg.Adapter.Kind = adapterKind
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}
	logger = logging.NewWriter(cmd.ErrOrStderr(), level)
	return nil
}
