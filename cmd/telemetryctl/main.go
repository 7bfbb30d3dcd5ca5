// Command telemetryctl inspects and maintains a bot telemetry directory
// from the command line: summary reports, record tailing, manual rotation,
// and config scaffolding.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tickerbeat/telemetry/schema"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:           "telemetryctl",
		Short:         "Inspect and maintain bot telemetry directories",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", schema.DefaultRoot, "Telemetry directory")

	cmd.AddCommand(
		newReportCommand(&dataDir),
		newTailCommand(&dataDir),
		newRotateCommand(&dataDir),
		newExportCommand(&dataDir),
		newInitConfigCommand(),
	)
	return cmd
}
