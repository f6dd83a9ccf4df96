package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vitec-memorix/OaiPmh/sqlstore"
	"github.com/vitec-memorix/OaiPmh/static"
)

func importCmd(opts *options) *cobra.Command {
	var dsn string
	c := &cobra.Command{
		Use:   "import CATALOG",
		Short: "Load a YAML catalog, optionally gzipped, into the SQLite database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig(ctx)
			if err != nil {
				return err
			}
			logger, err := opts.newLogger(cfg.ZapLevel())
			if err != nil {
				return err
			}
			defer logger.Sync()

			catalog, err := static.LoadFile(args[0])
			if err != nil {
				return err
			}
			if dsn == "" {
				dsn = cfg.Repository.DSN
			}
			if dsn != ":memory:" {
				if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
					return err
				}
			}
			s, err := sqlstore.Open(ctx, dsn, sqlstore.WithLogger(logger))
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Import(ctx, catalog); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records into %s\n", len(catalog.Items), dsn)
			return nil
		},
	}
	c.Flags().StringVar(&dsn, "dsn", "", "database file (default repository.dsn from config)")
	return c
}
