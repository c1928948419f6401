package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rowshare-backend/internal/client"
)

func (c *cli) remoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a running server over HTTP",
	}
	cmd.PersistentFlags().String(cfgKeyAPIURL, "", "API base URL (default "+client.DefaultBaseURL+")")
	cmd.PersistentFlags().String(cfgKeyCronSecret, "", "cron secret for remote sweep")
	cmd.AddCommand(
		c.remoteTablesCmd(),
		c.remoteUploadCmd(),
		c.remoteDeleteCmd(),
		c.remoteSearchCmd(),
		c.remoteSweepCmd(),
	)
	return cmd
}

func (c *cli) client() *client.Client {
	return client.New(c.v.GetString(cfgKeyAPIURL), nil)
}

func (c *cli) remoteTablesCmd() *cobra.Command {
	var showAll bool
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := c.client().Tables(cmd.Context(), showAll)
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

func (c *cli) remoteUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload spreadsheets to the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl := c.client()
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				res, err := cl.Upload(cmd.Context(), filepath.Base(path), data)
				if err != nil {
					return fmt.Errorf("upload %s: %w", path, err)
				}
				if err := c.print(cmd.OutOrStdout(), res, res.Message); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (c *cli) remoteDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <row-id|all>",
		Short: "Delete one row or everything on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New(`row id is required; pass "all" to delete everything`)
			}
			msg, err := c.client().Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]any{"success": true, "message": msg}, msg)
		},
	}
}

func (c *cli) remoteSearchCmd() *cobra.Command {
	var p client.SearchParams
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search rows on the server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				p.Query = args[0]
			}
			res, err := c.client().Search(cmd.Context(), p)
			if err != nil {
				return err
			}
			if c.asJSON {
				return c.print(cmd.OutOrStdout(), res, "")
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprint(w, "ID")
			for _, col := range res.Columns {
				fmt.Fprintf(w, "\t%s", col)
			}
			fmt.Fprintln(w)
			for _, row := range res.Data {
				fmt.Fprint(w, row.ID())
				for _, col := range res.Columns {
					fmt.Fprintf(w, "\t%v", row[col])
				}
				fmt.Fprintln(w)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d, %d matches\n", res.Page, res.TotalPages, res.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&p.TableID, "table", "", "restrict to one table id")
	cmd.Flags().StringVar(&p.Column, "column", "", "filter column")
	cmd.Flags().StringVar(&p.Value, "value", "", "filter value")
	cmd.Flags().IntVar(&p.Page, "page", 1, "result page")
	cmd.Flags().BoolVar(&p.ShowAll, "all", false, "include uploads outside the retention window")
	return cmd
}

func (c *cli) remoteSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Trigger the retention sweep on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.client().Sweep(cmd.Context(), c.v.GetString(cfgKeyCronSecret))
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), res, res.Message)
		},
	}
}
