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

	"go-data-pipeline/internal/api"
	"go-data-pipeline/internal/api/handler"
	"go-data-pipeline/internal/logger"
	"go-data-pipeline/pkg/router"
)

var timeNow = time.Now

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduler and the HTTP control surface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cobra.CheckErr(opts.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr")))
	return cmd
}

func serve(parent context.Context, a *app) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.pruneHistory(ctx)

	sched := a.scheduler()
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	r := router.New(a.log.WithComponent("http").Zerolog())
	api.RegisterRoutes(r, handler.NewPipelineHandler(ctx, sched, a.log))

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Server started", logger.Fields("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down", logger.Fields("timeout", a.cfg.Server.ShutdownTimeout.String()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
