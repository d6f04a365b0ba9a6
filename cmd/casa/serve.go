package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/casa/internal/api"
	"github.com/Veraticus/casa/internal/certs"
)

// shutdownTimeout bounds how long in-flight requests get after a signal.
const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the assistant over HTTP for the web front end.

Sessions are created with POST /api/sessions and live until they are
deleted or the server stops. With --tls the API is served over HTTPS using
a self-signed certificate kept in server.cert_dir; server.tls_hosts adds
names such as casa.local for access from other devices at home.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().Bool("tls", false, "Serve HTTPS with a self-signed certificate (overrides server.tls)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if cmd.Flags().Changed("tls") {
		cfg.Server.TLS, _ = cmd.Flags().GetBool("tls")
	}

	var tlsConfig *tls.Config
	if cfg.Server.TLS {
		tlsConfig, err = certs.NewFileManager(cfg.Server.CertDir, cfg.Server.TLSHosts...).TLSConfig()
		if err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	manager, cleanup, err := newSessionManager(cfg, store)
	if err != nil {
		return fmt.Errorf("failed to start assistant: %w", err)
	}
	defer cleanup()

	server := api.New(api.Config{
		Sessions:       manager,
		Cards:          store,
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TLS:            tlsConfig,
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Debug("Serving database", "path", store.Path())
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}
