package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/thunder"
	"github.com/aretw0/thunder/internal/cli"
	"github.com/aretw0/thunder/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the builder and exposes sessions, parsing and the sandbox over a JSON API with SSE session updates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, done, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer done()

		if cmd.Flags().Changed("addr") {
			app.Config.Server.Addr, _ = cmd.Flags().GetString("addr")
		}

		handler, err := app.Handler()
		if err != nil {
			return err
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		app.Start(sigCtx)

		srv := &http.Server{
			Addr:    app.Config.Server.Addr,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		tui.PrintBanner(cmd.ErrOrStderr(), strings.TrimSpace(thunder.Version))
		go func() {
			app.Logger.Info("Starting Thunder Server", "addr", srv.Addr, "store", app.Config.Store.Kind, "sandbox", app.Config.Sandbox.Dir)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-sigCtx.Done():
			app.Logger.Info("Start shutdown", "signal", sigCtx.Signal())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				app.Logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			app.Logger.Info("Thunder Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
}
