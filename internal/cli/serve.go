package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/httpapi"
	"github.com/ppiankov/intake/internal/session"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the intake operations over HTTP",
	Long: `Serve exposes the intake operations as an HTTP API. Every client
creates its own session; idle sessions expire after server.session_ttl.

Endpoints:
  POST   /sessions                          create a session
  POST   /sessions/{id}/operations/{op}     run an operation, body {"argument": "..."}
  GET    /sessions/{id}                     session snapshot
  DELETE /sessions/{id}                     end a session
  GET    /operations                        operation catalog
  GET    /healthz                           liveness

Example:
  intake serve --addr :8080`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindDispatchFlags(cmd, args); err != nil {
			return err
		}
		return bindFlags(cmd, map[string]string{
			"server.addr":        "addr",
			"server.session_ttl": "session-ttl",
		})
	},
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().Duration("session-ttl", 0, "idle session lifetime (overrides server.session_ttl)")
	addDispatchFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}

	registry := session.NewRegistry(a.cfg.Server.SessionTTL, a.cfg.Server.CleanupInterval, a.newSurface, a.logger)
	server := httpapi.NewServer(registry, a.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(a.cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	return shutdownServer(server, registry, a.logger)
}

// shutdownServer waits for open requests, then drops every session so no
// intake record outlives the process
func shutdownServer(server *httpapi.Server, registry *session.Registry, logger *zap.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	logger.Info("shut down", zap.Int("dropped_sessions", registry.Clear()))
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
