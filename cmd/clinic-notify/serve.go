package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the query API, broadcasting endpoints and reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			lgr, err := newLogger(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, cfg, lgr)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					lgr.Warn("serve: close resources", logger.Field{Key: "error", Value: err})
				}
			}()

			g, ctx := errgroup.WithContext(ctx)
			server := a.module.HTTP()
			server.Echo().Server.ReadTimeout = cfg.HTTP.ReadTimeout

			g.Go(func() error {
				return server.Start(cfg.HTTP.Addr)
			})
			if cfg.Reminders.Enabled {
				g.Go(func() error {
					return a.module.Reminders().Run(ctx)
				})
			}
			g.Go(func() error {
				<-ctx.Done()
				lgr.Info("serve: shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}
