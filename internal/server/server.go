// Package server runs the live-search HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/txn2/live-search/pkg/platform"
)

// Version is set at build time.
var Version = "dev"

const readHeaderTimeout = 10 * time.Second

// NewWithConfig loads the configuration at path, validates it and builds a
// platform from it.
func NewWithConfig(path string, opts ...platform.Option) (*platform.Platform, error) {
	cfg, err := platform.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return platform.New(append([]platform.Option{platform.WithConfig(cfg)}, opts...)...)
}

// Run listens on the configured address and serves until ctx is cancelled.
func Run(ctx context.Context, p *platform.Platform) error {
	ln, err := net.Listen("tcp", p.Config().Server.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", p.Config().Server.Address, err)
	}
	return Serve(ctx, p, ln)
}

// Serve starts the platform, serves its routes on ln and, once ctx is
// cancelled, drains: readiness flips first, then the listener closes, then
// open sessions are closed and resources released.
func Serve(ctx context.Context, p *platform.Platform, ln net.Listener) error {
	cfg := p.Config().Server
	httpServer := &http.Server{
		Handler:           p.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if err := p.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("starting platform: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLS.Enabled {
			err = httpServer.ServeTLS(ln, cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = httpServer.Serve(ln)
		}
		errCh <- err
	}()
	slog.Info("server: listening", "address", ln.Addr().String(), "tls", cfg.TLS.Enabled, "version", Version)

	var serveErr error
	select {
	case err := <-errCh:
		serveErr = fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
		slog.Info("server: shutting down")
	}

	p.Drain()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if serveErr != nil {
		errs = append(errs, serveErr)
	} else {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down http server: %w", err))
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, fmt.Errorf("serving: %w", err))
		}
	}
	if err := p.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stopping platform: %w", err))
	}
	return errors.Join(errs...)
}
