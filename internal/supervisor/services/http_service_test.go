// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*HTTPServerService)(nil)

// fakeHTTPServer accepts nothing and blocks in Serve until Shutdown, unless
// serveErr is set.
type fakeHTTPServer struct {
	serveErr    error
	shutdownErr error
	serves      atomic.Int32
	shutdowns   atomic.Int32
	started     chan struct{}
	stopOnce    sync.Once
	stop        chan struct{}
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeHTTPServer) Serve(ln net.Listener) error {
	defer ln.Close()
	f.serves.Add(1)
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.serveErr != nil {
		return f.serveErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	f.stopOnce.Do(func() { close(f.stop) })
	return f.shutdownErr
}

func startService(t *testing.T, svc *HTTPServerService) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	return cancel, errCh
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("Serve() did not return")
		return nil
	}
}

func TestNewHTTPServerServiceTimeoutDefault(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		svc := NewHTTPServerService(newFakeHTTPServer(), "127.0.0.1:0", timeout, zerolog.Nop())
		if svc.shutdownTimeout != 10*time.Second {
			t.Errorf("shutdownTimeout(%v) = %v, want 10s", timeout, svc.shutdownTimeout)
		}
	}
	svc := NewHTTPServerService(newFakeHTTPServer(), "127.0.0.1:0", 3*time.Second, zerolog.Nop())
	if svc.shutdownTimeout != 3*time.Second {
		t.Errorf("shutdownTimeout = %v, want 3s", svc.shutdownTimeout)
	}
	if svc.String() != "http-server" {
		t.Errorf("String() = %q, want http-server", svc.String())
	}
	if svc.Addr() != nil {
		t.Errorf("Addr() before Serve = %v, want nil", svc.Addr())
	}
}

func TestHTTPServerServiceServe(t *testing.T) {
	serveErr := errors.New("accept: too many open files")
	shutdownErr := errors.New("drain deadline exceeded")

	tests := []struct {
		name         string
		serveErr     error
		shutdownErr  error
		cancel       bool
		wantErr      error
		wantShutdown int32
	}{
		{"graceful drain on cancel", nil, nil, true, context.Canceled, 1},
		{"serve failure", serveErr, nil, false, serveErr, 0},
		{"drain failure", nil, shutdownErr, true, shutdownErr, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFakeHTTPServer()
			server.serveErr = tt.serveErr
			server.shutdownErr = tt.shutdownErr
			svc := NewHTTPServerService(server, "127.0.0.1:0", time.Second, zerolog.Nop())

			cancel, errCh := startService(t, svc)
			select {
			case <-server.started:
			case <-time.After(time.Second):
				t.Fatal("server did not start")
			}
			if tt.cancel {
				cancel()
			}

			if err := waitErr(t, errCh); !errors.Is(err, tt.wantErr) {
				t.Errorf("Serve() error = %v, want %v", err, tt.wantErr)
			}
			if got := server.shutdowns.Load(); got != tt.wantShutdown {
				t.Errorf("Shutdown calls = %d, want %d", got, tt.wantShutdown)
			}
			if svc.Addr() != nil {
				t.Errorf("Addr() after Serve = %v, want nil", svc.Addr())
			}
		})
	}
}

func TestHTTPServerServicePortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()

	server := newFakeHTTPServer()
	svc := NewHTTPServerService(server, ln.Addr().String(), time.Second, zerolog.Nop())
	_, errCh := startService(t, svc)

	if err := waitErr(t, errCh); err == nil {
		t.Error("Serve() error = nil, want listen error")
	}
	if server.serves.Load() != 0 {
		t.Error("Serve called on the HTTP server despite bind failure")
	}
}

func TestHTTPServerServiceRealServer(t *testing.T) {
	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "ok")
		}),
		ReadHeaderTimeout: time.Second,
	}
	svc := NewHTTPServerService(srv, "127.0.0.1:0", time.Second, zerolog.Nop())

	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 3,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          2 * time.Second,
	})
	sup.Add(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	var addr net.Addr
	deadline := time.Now().Add(2 * time.Second)
	for addr == nil && time.Now().Before(deadline) {
		addr = svc.Addr()
		time.Sleep(5 * time.Millisecond)
	}
	if addr == nil {
		cancel()
		t.Fatal("server never bound")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/", addr))
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
