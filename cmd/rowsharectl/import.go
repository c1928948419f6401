package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type importResult struct {
	File      string `json:"file"`
	TableName string `json:"tableName"`
	Rows      int    `json:"rows"`
	Columns   int    `json:"columns"`
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Upload spreadsheets from disk",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			results := make([]importResult, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				u, err := app.RowsService.Upload(cmd.Context(), filepath.Base(path), data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				res := importResult{File: path, TableName: u.TableName, Rows: len(u.Rows), Columns: len(u.Columns)}
				results = append(results, res)
				if !c.asJSON {
					fmt.Fprintf(cmd.OutOrStdout(), "%s -> %q (%d rows, %d columns)\n", path, u.TableName, res.Rows, res.Columns)
				}
			}
			if c.asJSON {
				return c.print(cmd.OutOrStdout(), results, "")
			}
			return nil
		},
	}
}
