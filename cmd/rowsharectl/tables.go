package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (c *cli) tablesCmd() *cobra.Command {
	var showAll bool
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List stored tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			tables, err := app.RowsService.Tables(cmd.Context(), showAll)
			if err != nil {
				return err
			}
			if c.asJSON {
				return c.print(cmd.OutOrStdout(), tables, "")
			}
			if len(tables) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no tables")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROWS\tCOLUMNS\tUPLOADED")
			for _, t := range tables {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", t.ID, t.Name, t.RowCount, t.ColumnCount, uploaded(t.UploadDate))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&showAll, "all", false, "include uploads outside the retention window")
	return cmd
}

func uploaded(at time.Time) string {
	if at.IsZero() {
		return "-"
	}
	return humanize.Time(at)
}
