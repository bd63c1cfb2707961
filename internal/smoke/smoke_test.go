package smoke

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Camiloez/postboard/internal/stack"
	"github.com/Camiloez/postboard/pkg/logger"
)

func portOf(t *testing.T, addr string) int {
	t.Helper()
	_, raw, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		t.Fatal(err)
	}
	return port
}

func TestRunPassesAgainstLiveListeners(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	st := &stack.Stack{Name: "smoke", Services: map[string]*stack.Service{
		"db": {Image: "x", Ports: stack.Ports{{HostPort: portOf(t, ln.Addr().String()), ContainerPort: 27017, Protocol: "tcp"}}},
		"backend": {
			Image:       "y",
			Ports:       stack.Ports{{HostPort: portOf(t, api.Listener.Addr().String()), ContainerPort: 8000, Protocol: "tcp"}},
			Healthcheck: &stack.Healthcheck{Path: "/healthz"},
			DependsOn:   []string{"db"},
		},
	}}

	results, err := Run(context.Background(), st, Options{Timeout: 2 * time.Second}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %+v", results)
	}
	if results[0].Service != "db" || results[2].Kind != CheckHealth {
		t.Fatalf("unexpected result order %+v", results)
	}
	if err := Failed(results); err != nil {
		t.Fatalf("expected all checks to pass: %v", err)
	}
}

func TestRunReportsClosedPortAndUnpublishedHealthcheck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	closedPort := portOf(t, ln.Addr().String())
	ln.Close()

	st := &stack.Stack{Name: "smoke", Services: map[string]*stack.Service{
		"db":  {Image: "x", Ports: stack.Ports{{HostPort: closedPort, ContainerPort: 27017, Protocol: "tcp"}}},
		"api": {Image: "y", Ports: stack.Ports{{ContainerPort: 8000}}, Healthcheck: &stack.Healthcheck{Path: "/healthz"}},
	}}
	results, err := Run(context.Background(), st, Options{Timeout: 300 * time.Millisecond, Interval: 50 * time.Millisecond}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	failed := Failed(results)
	if failed == nil {
		t.Fatal("expected failures")
	}
	msg := failed.Error()
	if !strings.Contains(msg, "db port") || !strings.Contains(msg, "not published") {
		t.Fatalf("unexpected failure summary: %s", msg)
	}
	for _, r := range results {
		if r.Service == "db" && r.Attempts < 2 {
			t.Fatalf("expected retries on closed port, got %d attempts", r.Attempts)
		}
	}
}

func TestHealthcheckDialsBoundHostIP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.2:0")
	if err != nil {
		t.Skipf("127.0.0.2 unavailable: %v", err)
	}
	api := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	api.Listener.Close()
	api.Listener = ln
	api.Start()
	defer api.Close()

	st := &stack.Stack{Name: "smoke", Services: map[string]*stack.Service{
		"backend": {
			Image:       "y",
			Ports:       stack.Ports{{HostIP: "127.0.0.2", HostPort: portOf(t, ln.Addr().String()), ContainerPort: 8000, Protocol: "tcp"}},
			Healthcheck: &stack.Healthcheck{Path: "/healthz"},
		},
	}}
	results, err := Run(context.Background(), st, Options{Timeout: time.Second, Interval: 50 * time.Millisecond}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if err := Failed(results); err != nil {
		t.Fatalf("expected checks to pass on the bound IP: %v", err)
	}
	health := results[len(results)-1]
	if health.Kind != CheckHealth || !strings.HasPrefix(health.Target, "http://127.0.0.2:") {
		t.Fatalf("unexpected health target %+v", health)
	}
}
