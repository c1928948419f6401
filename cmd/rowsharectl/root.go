package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rowshare-backend/internal/bootstrap"
)

type cli struct {
	configPath string
	asJSON     bool
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "rowsharectl",
		Short:         "Maintenance commands for the row-share backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadViper(c.configPath)
			if err != nil {
				return err
			}
			for _, key := range []string{cfgKeyStore, cfgKeySQLitePath, cfgKeyDatabaseURL, cfgKeyAPIURL, cfgKeyCronSecret} {
				if f := cmd.Flags().Lookup(key); f != nil {
					if err := v.BindPFlag(key, f); err != nil {
						return err
					}
				}
			}
			c.v = v
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ./rowshare.yaml)")
	flags.BoolVar(&c.asJSON, "json", false, "print JSON output")
	flags.String(cfgKeyStore, "", "store backend: postgres, sqlite or memory")
	flags.String(cfgKeySQLitePath, "", "sqlite database path")
	flags.String(cfgKeyDatabaseURL, "", "postgres connection URL")

	root.AddCommand(
		c.sweepCmd(),
		c.importCmd(),
		c.tablesCmd(),
		c.migrateCmd(),
		c.remoteCmd(),
	)
	return root
}

// app builds the backend from the loaded settings.
func (c *cli) app(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := appConfig(c.v)
	if err != nil {
		return nil, err
	}
	return bootstrap.BuildContext(ctx, cfg)
}

func (c *cli) print(w io.Writer, v any, text string) error {
	if c.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
