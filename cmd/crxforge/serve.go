package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crxforge/crxforge/internal/server"
	"github.com/crxforge/crxforge/internal/svc"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the test orchestration HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svcCtx, err := svc.NewServiceContext(cfg)
			if err != nil {
				return err
			}
			defer svcCtx.Close()

			return server.Run(ctx, svcCtx)
		},
	}
}
