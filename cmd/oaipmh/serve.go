package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vitec-memorix/OaiPmh"
)

func serveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured repository over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := opts.loadConfig(ctx)
			if err != nil {
				return err
			}
			logger, err := opts.newLogger(cfg.ZapLevel())
			if err != nil {
				return err
			}
			defer logger.Sync()

			repo, closeRepo, err := openRepository(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeRepo()
			identity, err := repo.Identify(ctx)
			if err != nil {
				return err
			}

			provider := oaipmh.NewProvider(repo, oaipmh.WithLogger(logger))
			mux := http.NewServeMux()
			mux.Handle(cfg.Path, oaipmh.NewHandler(provider, logger))
			srv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("listening",
					zap.String("addr", cfg.Listen),
					zap.String("path", cfg.Path),
					zap.String("repository", identity.RepositoryName),
					zap.String("driver", cfg.Repository.Driver))
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
				sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				return srv.Shutdown(sctx)
			})
			return g.Wait()
		},
	}
}
