package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/vitec-memorix/OaiPmh/internal/probe"
)

func probeCmd(opts *options) *cobra.Command {
	var (
		timeout  time.Duration
		attempts int
	)
	c := &cobra.Command{
		Use:   "probe URL",
		Short: "Show repository info of an OAI-PMH endpoint as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := opts.newLogger(zapcore.WarnLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			client := probe.NewClient(timeout, attempts, logger)
			info, err := probe.RepositoryInfo(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
	c.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout per request")
	c.Flags().IntVar(&attempts, "attempts", 3, "attempts per request")
	return c
}
