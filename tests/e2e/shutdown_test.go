package e2e

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/vietddude/pollster/internal/control"
	"github.com/vietddude/pollster/internal/core/config"
)

// freePort grabs an ephemeral port for the HTTP server so the test can
// address it after startup.
func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve a port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func waitForHealthy(t *testing.T, url string) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("Server at %s never became healthy", url)
}

func TestGracefulShutdown(t *testing.T) {
	// Memory storage and no Redis: enough to start every component
	// without external services.
	cfg := config.AppConfig{}
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.APIKey = "test-key"
	cfg.Scraper.APIKey = "test-key"
	cfg.ApplyDefaults()
	cfg.Server.Port = freePort(t)

	app, err := control.NewApp(cfg)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	healthURL := fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)
	waitForHealthy(t, healthURL)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	// A drained server must not accept new connections.
	if resp, err := http.Get(healthURL); err == nil {
		resp.Body.Close()
		t.Error("Server still accepting requests after Stop")
	}
}
