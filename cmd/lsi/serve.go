package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lsi/internal/logger"
	"lsi/internal/metrics"
	"lsi/internal/server"
	"lsi/interning"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "load the configured corpora and serve the table over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			var table *interning.Table
			if len(a.cfg.Corpora) > 0 {
				t, report, err := runLoad(ctx, a.cfg, a.cfg.Corpora)
				if err != nil {
					return err
				}
				table = t
				_ = report.writeText(a.out)
			} else {
				a.log.Info("no corpora configured, serving an empty table")
				table = newTable(a.cfg, a.log)
			}

			reg, err := metrics.NewRegistry(table, nil)
			if err != nil {
				return err
			}
			srv := server.NewServer(a.cfg.Server.Addr, table, reg, a.log)
			a.log.Info("serving", logger.F("addr", a.cfg.Server.Addr))
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
