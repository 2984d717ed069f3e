package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/syslua/syslua/pkg/constants"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback [snapshot-id]",
	Short: "Re-apply an earlier snapshot's manifest (default: the previous one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var target constants.SnapshotID
		if len(args) == 1 {
			target = constants.SnapshotID(args[0])
		}

		e, _, err := newEngine("rollback")
		if err != nil {
			return err
		}
		result, err := e.Rollback(context.Background(), target)
		if err != nil {
			return err
		}
		printApplyResult(result)
		return nil
	},
}
