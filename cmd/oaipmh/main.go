//  Copyright 2015 by Leipzig University Library, http://ub.uni-leipzig.de
//                    The Finc Authors, http://finc.info
//                    Martin Czygan, <martin.czygan@uni-leipzig.de>
//
// This file is part of some open source application.
//
// Some open source application is free software: you can redistribute
// it and/or modify it under the terms of the GNU General Public
// License as published by the Free Software Foundation, either
// version 3 of the License, or (at your option) any later version.
//
// Some open source application is distributed in the hope that it will
// be useful, but WITHOUT ANY WARRANTY; without even the implied warranty
// of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Foobar.  If not, see <http://www.gnu.org/licenses/>.
//
// @license GPL-3.0+ <http://spdx.org/licenses/GPL-3.0+>

// Command oaipmh serves a repository over OAI-PMH.
//
//	$ oaipmh import catalog.yaml
//	$ oaipmh serve
//	$ oaipmh probe http://localhost:8080/oai
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vitec-memorix/OaiPmh"
	"github.com/vitec-memorix/OaiPmh/internal/config"
	"github.com/vitec-memorix/OaiPmh/sqlstore"
	"github.com/vitec-memorix/OaiPmh/static"
)

// options are the flags shared by all subcommands.
type options struct {
	configFile string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "oaipmh",
		Short:        "OAI-PMH 2.0 data provider",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default ~/.oaipmh/config.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "more output")
	cmd.AddCommand(serveCmd(opts), importCmd(opts), probeCmd(opts), versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), oaipmh.Version)
		},
	}
}

func (o *options) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, _, err := config.Load(ctx, config.LoadOptions{ConfigFilePath: o.configFile})
	return cfg, err
}

// newLogger builds a JSON logger, verbose switches to debug.
func (o *options) newLogger(level zapcore.Level) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if o.verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// openRepository returns the configured repository and a function to release
// it.
func openRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (oaipmh.Repository, func() error, error) {
	rc := cfg.Repository
	switch rc.Driver {
	case config.DriverSQLite:
		s, err := sqlstore.Open(ctx, rc.DSN,
			sqlstore.WithBaseURL(cfg.BaseURL),
			sqlstore.WithPageSize(rc.PageSize),
			sqlstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		c, err := static.LoadFile(rc.Catalog)
		if err != nil {
			return nil, nil, err
		}
		repo := static.New(c, static.WithBaseURL(cfg.BaseURL), static.WithPageSize(rc.PageSize))
		return repo, func() error { return nil }, nil
	}
}
