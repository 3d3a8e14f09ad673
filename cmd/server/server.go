package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 20 * time.Second

// serve runs the hub, the TCP listener and the HTTP server until a signal
// arrives or one of them fails, then shuts the others down
func (app *application) serve() error {
	ln, err := net.Listen("tcp", app.Config.TCPAddr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Set up signal handling for graceful shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case s := <-quit:
			app.Logger.Info("Shutting down server", zap.String("signal", s.String()))
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		return app.Hub.Run(gctx)
	})

	g.Go(func() error {
		return app.Hub.ServeTCP(gctx, ln)
	})

	if addr := app.Config.HTTPAddr(); addr != "" {
		app.Server = &http.Server{
			Addr:         addr,
			Handler:      app.routes(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		g.Go(func() error {
			app.Logger.Info("Starting HTTP server", zap.String("address", addr))

			if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()

			if err := app.Server.Shutdown(shutdownCtx); err != nil {
				app.Logger.Error("Server forced to shutdown", zap.Error(err))
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	app.Logger.Info("Server stopped gracefully")
	return nil
}
