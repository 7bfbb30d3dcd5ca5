package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tickerbeat/telemetry/config"
	"github.com/tickerbeat/telemetry/internal/output"
	"github.com/tickerbeat/telemetry/reader"
	"github.com/tickerbeat/telemetry/schema"
	"github.com/tickerbeat/telemetry/storage"
)

func newReportCommand(dataDir *string) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a summary of the current metrics snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			rd := reader.New(*dataDir, reader.Options{})
			metrics := rd.Metrics(true)
			if jsonOut {
				return output.PrintJSONReport(cmd.OutOrStdout(), metrics)
			}
			output.PrintReport(cmd.OutOrStdout(), metrics, rd.Manifest(true))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the raw metrics document as JSON")
	return cmd
}

func newTailCommand(dataDir *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:       "tail [signals|cycles|errors]",
		Short:     "Print the most recent records in a category, newest first",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"signals", "cycles", "errors"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rd := reader.New(*dataDir, reader.Options{})

			var records []schema.Record
			switch schema.Category(args[0]) {
			case schema.CategorySignals:
				records = rd.RecentSignals(limit)
			case schema.CategoryCycles:
				records = rd.RecentCycles(limit)
			case schema.CategoryErrors:
				records = rd.RecentErrors(limit)
			default:
				return fmt.Errorf("unknown category %q", args[0])
			}

			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No records")
				return nil
			}
			output.PrintRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to print")
	return cmd
}

func newRotateCommand(dataDir *string) *cobra.Command {
	var (
		maxCount int
		compress bool
	)

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Apply retention to every record directory now",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := schema.NewLayout(*dataDir)
			for _, category := range schema.Categories {
				dir := layout.CategoryDir(category)
				if err := storage.Rotate(dir, category.Pattern(), maxCount, compress); err != nil {
					return fmt.Errorf("rotate %s: %w", category, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rotated %s (max %d)\n", dir, maxCount)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxCount, "max", 500, "Files to keep per category")
	cmd.Flags().BoolVar(&compress, "compress", true, "Gzip the oldest kept files")
	return cmd
}

func newExportCommand(dataDir *string) *cobra.Command {
	var (
		out   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump the full on-disk telemetry view into a single JSON document",
		RunE: func(cmd *cobra.Command, args []string) error {
			rd := reader.New(*dataDir, reader.Options{})

			doc := map[string]any{
				"metrics":     rd.Metrics(true),
				"state":       rd.State(true),
				"manifest":    rd.Manifest(true),
				"signals":     rd.RecentSignals(limit),
				"cycles":      rd.RecentCycles(limit),
				"errors":      rd.RecentErrors(limit),
				"exported_at": schema.FormatTime(time.Now()),
			}

			if out == "-" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}
			if err := storage.WriteJSON(out, doc, false); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "telemetry_export.json", "Destination path, or - for stdout")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Records per category")
	return cmd
}

func newInitConfigCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write an example telemetry configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := config.Example()
			if err != nil {
				return err
			}
			if path == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			return os.WriteFile(path, out, 0o644)
		},
	}
	cmd.Flags().StringVarP(&path, "output", "o", "telemetry.yaml", "Destination path, or - for stdout")
	return cmd
}
