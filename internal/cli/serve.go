package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/antibody/internal/logging"
	"github.com/ppiankov/antibody/internal/server"
)

var (
	serveHost string
	servePort int
)

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes decay scoring, adversarial retrieval, the dependency graph and
the triage queue over HTTP. When decay.refresh_interval is set, mutable claims are
re-scored in the background.

Example:
  antibody serve
  antibody serve --port 9000
  ANTIBODY_DECAY_REFRESH_INTERVAL=6h antibody serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	host, port := a.cfg.Server.Host, a.cfg.Server.Port
	if serveHost != "" {
		host = serveHost
	}
	if servePort != 0 {
		port = servePort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(a.svc, a.triage, Version, a.cfg),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      a.cfg.Worker.BatchTimeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	if interval := a.cfg.Decay.RefreshInterval; interval > 0 {
		go a.svc.RunRefreshLoop(ctx, interval, a.cfg.Decay.CheckTrending)
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("listening", "addr", addr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
