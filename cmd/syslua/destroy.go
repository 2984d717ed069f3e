package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syslua/syslua/pkg/console"
)

var destroyAssumeYes bool

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Apply an empty manifest, tearing down everything currently applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !destroyAssumeYes {
			confirmed, err := console.ConfirmAction(
				"Destroy every build and bind currently applied to this store?",
				"Destroy",
				"Cancel",
			)
			if err != nil {
				return fmt.Errorf("destroy: confirmation prompt: %w", err)
			}
			if !confirmed {
				fmt.Println(console.FormatInfoMessage("destroy cancelled"))
				return nil
			}
		}

		e, _, err := newEngine("destroy")
		if err != nil {
			return err
		}
		result, err := e.Destroy(context.Background())
		if err != nil {
			return err
		}
		printApplyResult(result)
		return nil
	},
}

func init() {
	destroyCmd.Flags().BoolVarP(&destroyAssumeYes, "yes", "y", false, "skip the confirmation prompt")
}
