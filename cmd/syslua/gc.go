package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syslua/syslua/pkg/console"
	"github.com/syslua/syslua/pkg/engine"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Mark-and-sweep unreferenced builds, binds, and inputs-cache entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		asJSON, _ := cmd.Flags().GetBool("json")

		e, cfg, err := newEngine("gc")
		if err != nil {
			return err
		}
		report, err := e.GC(context.Background(), engine.GCOptions{
			DryRun:         dryRun,
			InputsCacheDir: cfg.InputsCacheDir,
			InputsLockPath: cfg.InputsLockPath,
		})
		if err != nil {
			return err
		}

		if asJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		printGCReport(report, dryRun)
		return nil
	},
}

func init() {
	gcCmd.Flags().Bool("dry-run", false, "report what would be removed without deleting anything")
	gcCmd.Flags().Bool("json", false, "emit the report as JSON")
}

func printGCReport(report engine.GCReport, dryRun bool) {
	verb := "removed"
	if dryRun {
		verb = "would remove"
	}
	fmt.Println(console.FormatInfoMessage(fmt.Sprintf("gc: %s %d store entries, %d inputs-cache entries, reclaiming %d bytes",
		verb, len(report.Removed), len(report.InputsCacheRemoved), report.ReclaimedBytes)))

	rows := make([][]string, 0, len(report.Removed)+len(report.InputsCacheRemoved))
	for _, c := range report.Removed {
		rows = append(rows, []string{c.Kind, string(c.Hash), string(c.Reason), fmt.Sprint(c.Bytes)})
	}
	for _, c := range report.InputsCacheRemoved {
		rows = append(rows, []string{c.Kind, c.Path, string(c.Reason), fmt.Sprint(c.Bytes)})
	}
	if len(rows) > 0 {
		fmt.Print(console.RenderTable(console.TableConfig{
			Title:   "candidates",
			Headers: []string{"kind", "id", "reason", "bytes"},
			Rows:    rows,
		}))
	}
	for _, w := range report.Warnings {
		fmt.Println(console.FormatWarningMessage(fmt.Sprintf("%s: %v", w.Path, w.Err)))
	}
}
