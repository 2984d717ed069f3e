package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syslua/syslua/pkg/console"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the current snapshot, its counts, and store disk usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")

		e, _, err := newEngine("status")
		if err != nil {
			return err
		}
		st, err := e.Status(context.Background(), verbose)
		if err != nil {
			return err
		}

		if !st.HasCurrent {
			fmt.Println(console.FormatInfoMessage("no snapshot applied yet"))
		} else {
			fmt.Println(console.FormatInfoMessage(fmt.Sprintf("current snapshot: %s", st.CurrentID)))
			fmt.Printf("  builds: %d\n", st.Summary.BuildCount)
			fmt.Printf("  binds:  %d\n", st.Summary.BindCount)
		}
		fmt.Printf("store usage: %d bytes\n", st.StoreBytes)

		if !verbose {
			return nil
		}
		rows := make([][]string, 0, len(st.AllSnapshots))
		for _, s := range st.AllSnapshots {
			current := ""
			if s.Current {
				current = "*"
			}
			rows = append(rows, []string{string(s.ID), fmt.Sprint(s.Builds), fmt.Sprint(s.Binds), current})
		}
		fmt.Print(console.RenderTable(console.TableConfig{
			Title:   "snapshots",
			Headers: []string{"id", "builds", "binds", "current"},
			Rows:    rows,
		}))
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("verbose", false, "list every snapshot in the index")
}
