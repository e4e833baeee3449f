package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/txn2/live-search/pkg/platform"
	"github.com/txn2/live-search/pkg/search"
)

const testWait = 5 * time.Second

type emptyProvider struct{}

func (emptyProvider) Search(context.Context, search.Request) (*search.Response, error) {
	return &search.Response{}, nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestVersion(t *testing.T) {
	// Version should be set to "dev" by default
	if Version != "dev" {
		t.Errorf("expected Version 'dev', got %q", Version)
	}
}

func TestNewWithConfig(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		p, err := NewWithConfig(writeConfig(t, "provider:\n  api_key: key\n"),
			platform.WithProvider(emptyProvider{}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Config().Server.Path != platform.DefaultPath {
			t.Errorf("Server.Path = %q", p.Config().Server.Path)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := NewWithConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing config")
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		if _, err := NewWithConfig(writeConfig(t, "logging:\n  format: xml\n")); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestServe_GracefulShutdown(t *testing.T) {
	cfg, err := platform.ParseConfig([]byte("provider:\n  api_key: key\nserver:\n  shutdown_timeout: 2s\n"))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	p, err := platform.New(
		platform.WithConfig(cfg),
		platform.WithProvider(emptyProvider{}),
		platform.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("platform.New() error = %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, p, ln) }()

	deadline := time.Now().Add(testWait)
	for {
		resp, err := http.Get(base + "/readyz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("server never became ready")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(testWait):
		t.Fatal("Serve() did not return after cancel")
	}

	if p.Health().State() != "draining" {
		t.Errorf("health state = %q, want draining", p.Health().State())
	}
	if _, err := http.Get(base + "/healthz"); err == nil {
		t.Error("listener still accepting after shutdown")
	}
}
