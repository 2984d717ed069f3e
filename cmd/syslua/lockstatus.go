package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/syslua/syslua/pkg/console"
)

var lockStatusCmd = &cobra.Command{
	Use:   "lock-status",
	Short: "Inspect the store's lock file without acquiring it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := newEngine("lock-status")
		if err != nil {
			return err
		}
		meta, held, err := e.LockStatus()
		if err != nil {
			return err
		}
		if !held {
			fmt.Println(console.FormatInfoMessage("store is not currently locked"))
			return nil
		}
		fmt.Println(console.FormatWarningMessage(fmt.Sprintf(
			"store held exclusively by pid %d (%s), started %s",
			meta.PID, meta.Command, time.Unix(meta.StartedAtUnix, 0).Format(time.RFC3339))))
		return nil
	},
}
