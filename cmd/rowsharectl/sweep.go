package main

import (
	"github.com/spf13/cobra"
)

func (c *cli) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete uploads older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.RowsService.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]any{
				"success":      true,
				"message":      res.Message,
				"deletedCount": res.Deleted,
			}, res.Message)
		},
	}
}
