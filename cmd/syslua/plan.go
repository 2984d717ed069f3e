package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syslua/syslua/pkg/configload"
	"github.com/syslua/syslua/pkg/console"
)

var planCmd = &cobra.Command{
	Use:     "plan <config>",
	Aliases: []string{"diff"},
	Short:   "Compute and display the diff apply would run, without mutating anything",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cfg, err := newEngine("plan")
		if err != nil {
			return err
		}
		desired, err := configload.Load(args[0], currentPlatform(), cfg.Elevated)
		if err != nil {
			return err
		}

		diff, err := e.Plan(context.Background(), desired)
		if err != nil {
			return err
		}

		rows := [][]string{
			{"builds to realize", fmt.Sprint(len(diff.BuildsToRealize))},
			{"builds cached", fmt.Sprint(len(diff.BuildsCached))},
			{"builds orphaned", fmt.Sprint(len(diff.BuildsOrphaned))},
			{"binds to apply", fmt.Sprint(len(diff.BindsToApply))},
			{"binds to update", fmt.Sprint(len(diff.BindsToUpdate))},
			{"binds to destroy", fmt.Sprint(len(diff.BindsToDestroy))},
			{"binds unchanged", fmt.Sprint(len(diff.BindsUnchanged))},
		}
		fmt.Print(console.RenderTable(console.TableConfig{
			Title:   "plan",
			Headers: []string{"category", "count"},
			Rows:    rows,
		}))
		return nil
	},
}
