package hosting

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"epub-streamer/pkg/config"

	"github.com/labstack/echo/v4"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolveMode(t *testing.T) {
	inLambda := envOf(map[string]string{lambdaRuntimeEnv: "127.0.0.1:9001"})
	noEnv := envOf(nil)

	cases := []struct {
		name   string
		mode   string
		local  bool
		getenv func(string) string
		want   string
	}{
		{"default", config.HostingAuto, false, noEnv, config.HostingListener},
		{"lambda runtime", config.HostingAuto, false, inLambda, config.HostingLambda},
		{"local beats runtime", config.HostingAuto, true, inLambda, config.HostingListener},
		{"explicit lambda", config.HostingLambda, true, noEnv, config.HostingLambda},
		{"explicit listener", config.HostingListener, false, inLambda, config.HostingListener},
		{"IS_LOCAL yes", config.HostingAuto, false, envOf(map[string]string{lambdaRuntimeEnv: "x", localEnv: "yes"}), config.HostingListener},
		{"IS_LOCAL false is still set", config.HostingAuto, false, envOf(map[string]string{lambdaRuntimeEnv: "x", localEnv: "false"}), config.HostingListener},
		{"IS_LOCAL empty", config.HostingAuto, false, envOf(map[string]string{lambdaRuntimeEnv: "x", localEnv: ""}), config.HostingLambda},
	}
	for _, c := range cases {
		cfg := config.DefaultConfig()
		cfg.HostingMode = c.mode
		cfg.Local = c.local
		if got := ResolveMode(cfg, c.getenv); got != c.want {
			t.Errorf("%s: expected %s, got %s", c.name, c.want, got)
		}
	}
}

func TestRunUnknownMode(t *testing.T) {
	if err := Run(context.Background(), echo.New(), "carrier-pigeon", ":0"); err == nil {
		t.Fatalf("Expected error for unknown mode")
	}
}

func TestRunListenerShutsDown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, e, config.HostingListener, addr) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/ping")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("listener never came up: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
