package main

import (
	"fmt"
	"strconv"

	"dieter/internal/library"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var filterFlag string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List generated assets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := library.ParseFilter(filterFlag)
			if err != nil {
				return err
			}

			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			items := library.History(sess.ledger, filter)
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No generations yet")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for i, item := range items {
				rows = append(rows, []string{strconv.Itoa(i + 1), item.Title, item.Label, item.ID})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Title", "Created", "ID"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&filterFlag, "filter", "f", string(library.FilterAll), "Collection to show: all, tracks, videos, lyrics, stems")
	return cmd
}
