// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HTTPServer is the lifecycle subset of *http.Server.
type HTTPServer interface {
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs the API server under supervision. The listener is
// bound inside Serve, so a port conflict fails the service immediately and
// a restart binds again. Context cancellation triggers a graceful Shutdown
// bounded by the shutdown timeout.
//
//	srv := &http.Server{Handler: router}
//	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.Address(), cfg.Server.ShutdownTimeout, logger))
type HTTPServerService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
	logger          zerolog.Logger

	mu    sync.RWMutex
	bound net.Addr
}

// NewHTTPServerService wraps server listening on addr. A non-positive
// timeout defaults to 10s.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHTTPServerService(server HTTPServer, addr string, shutdownTimeout time.Duration, logger zerolog.Logger) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With().Str("service", "http").Logger(),
	}
}

// Addr returns the bound address while the server is listening, or nil.
func (h *HTTPServerService) Addr() net.Addr {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bound
}

func (h *HTTPServerService) setBound(a net.Addr) {
	h.mu.Lock()
	h.bound = a
	h.mu.Unlock()
}

// Serve implements suture.Service.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", h.addr, err)
	}
	h.setBound(ln.Addr())
	defer h.setBound(nil)

	h.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")

	done := make(chan error, 1)
	go func() {
		err := h.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		// Stopped without a shutdown request; let the supervisor restart it.
		return errors.New("http server stopped unexpectedly")

	case <-ctx.Done():
	}

	// ctx is already canceled, so the drain gets its own deadline.
	drainCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	start := time.Now()
	h.logger.Info().Dur("timeout", h.shutdownTimeout).Msg("HTTP server draining")
	if err := h.server.Shutdown(drainCtx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("http server shutdown: %w", err)
	}
	if err := <-done; err != nil {
		h.logger.Warn().Err(err).Msg("HTTP server returned error during drain")
	}
	h.logger.Info().Dur("took", time.Since(start)).Msg("HTTP server stopped")
	return ctx.Err()
}

// String names the service in supervisor logs.
func (h *HTTPServerService) String() string {
	return "http-server"
}
