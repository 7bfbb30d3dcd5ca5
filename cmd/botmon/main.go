// Command botmon is the monitoring-process dashboard: it watches a bot's
// telemetry directory and renders live metrics in the terminal. It never
// talks to the bot itself; the on-disk schema is the only channel.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tickerbeat/telemetry/internal/dashboard"
	"github.com/tickerbeat/telemetry/reader"
	"github.com/tickerbeat/telemetry/schema"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		dataDir    string
		interval   time.Duration
		cycleTimer string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "botmon",
		Short:         "Live terminal dashboard over a bot telemetry directory",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				log.SetLevel(log.DebugLevel)
			} else {
				// The dashboard owns the terminal; keep the logger quiet.
				log.SetLevel(log.ErrorLevel)
			}
			return run(dataDir, interval, cycleTimer)
		},
	}

	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", schema.DefaultRoot, "Telemetry directory written by the bot")
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Poll interval")
	cmd.Flags().StringVar(&cycleTimer, "cycle-timer", "cycle.duration", "Timer series charted in the sparkline")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log reader warnings")
	return cmd
}

func run(dataDir string, interval time.Duration, cycleTimer string) error {
	rd := reader.New(dataDir, reader.Options{})

	done := make(chan struct{})
	shutdown := func() { close(done) }

	d, err := dashboard.New(rd, dashboard.Options{
		DataDir:      dataDir,
		PollInterval: interval,
		CycleTimer:   cycleTimer,
	}, shutdown)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	d.Start()
	select {
	case <-done:
	case <-sigCh:
	}
	d.Stop()
	return nil
}
