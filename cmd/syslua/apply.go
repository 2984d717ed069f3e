package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syslua/syslua/pkg/apply"
	"github.com/syslua/syslua/pkg/configload"
	"github.com/syslua/syslua/pkg/console"
)

var applyCmd = &cobra.Command{
	Use:   "apply <config>",
	Short: "Realize a configuration against the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repair, _ := cmd.Flags().GetBool("repair")

		e, cfg, err := newEngine("apply")
		if err != nil {
			return err
		}
		desired, err := configload.Load(args[0], currentPlatform(), cfg.Elevated)
		if err != nil {
			return err
		}

		result, err := e.Apply(context.Background(), desired, args[0], repair)
		if err != nil {
			return err
		}
		printApplyResult(result)
		return nil
	},
}

func init() {
	applyCmd.Flags().Bool("repair", false, "run check_actions for unchanged binds and re-apply drifted ones")
}

func printApplyResult(result apply.Result) {
	fmt.Println(console.FormatSuccessMessage("apply complete"))
	fmt.Printf("  builds realized:  %d\n", len(result.Diff.BuildsToRealize))
	fmt.Printf("  builds cached:    %d\n", len(result.Diff.BuildsCached))
	fmt.Printf("  binds applied:    %d\n", len(result.Diff.BindsToApply))
	fmt.Printf("  binds updated:    %d\n", len(result.Diff.BindsToUpdate))
	fmt.Printf("  binds destroyed:  %d\n", len(result.DestroyedHashes))
}
