package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	logx "venuemail/pkg/logx"
)

func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "venuemail_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, reg, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not start")
	}

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "venuemail_test_total 3") {
		t.Fatalf("counter missing from exposition:\n%s", body)
	}
}

func TestDisabledIsNoop(t *testing.T) {
	s := New(Config{}, prometheus.NewRegistry(), logx.Nop())
	s.Start(context.Background())
	if s.Addr() != "" {
		t.Fatalf("disabled server bound %q", s.Addr())
	}
	s.Stop(context.Background())
}

func TestIsLoopbackAddr(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:9464": true,
		"localhost:9464": true,
		"[::1]:9464":     true,
		":9464":          false,
		"0.0.0.0:9464":   false,
		"bad":            false,
	}
	for addr, want := range cases {
		if got := isLoopbackAddr(addr); got != want {
			t.Errorf("isLoopbackAddr(%q)=%v want %v", addr, got, want)
		}
	}
}
