// Package smoke verifies a running stack from the outside: published ports accept
// connections and healthcheck paths answer 2xx.
package smoke

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/multierr"

	"github.com/Camiloez/postboard/internal/stack"
	"github.com/Camiloez/postboard/pkg/api/client"
)

// Check kinds.
const (
	CheckPort   = "port"
	CheckHealth = "health"
)

// Options tune a smoke run.
type Options struct {
	// Host is where published ports are reached; defaults to 127.0.0.1.
	Host string
	// Timeout bounds the retries of each individual check.
	Timeout time.Duration
	// Interval is the first retry delay; later delays grow exponentially.
	Interval time.Duration
}

// Result is the outcome of one check.
type Result struct {
	Service  string
	Kind     string
	Target   string
	Attempts int
	Duration time.Duration
	Err      error
}

// OK reports whether the check passed.
func (r Result) OK() bool { return r.Err == nil }

// Run executes every check of the stack in service start order.
func Run(ctx context.Context, st *stack.Stack, opts Options, log *slog.Logger) ([]Result, error) {
	order, err := st.Order()
	if err != nil {
		return nil, err
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 200 * time.Millisecond
	}

	var results []Result
	for _, name := range order {
		svc := st.Services[name]
		for _, p := range svc.Ports {
			if p.HostPort == 0 || (p.Protocol != "" && p.Protocol != "tcp") {
				continue
			}
			addr := net.JoinHostPort(hostFor(p, opts.Host), strconv.Itoa(p.HostPort))
			res := retry(ctx, opts, func(ctx context.Context) error {
				return dial(ctx, addr)
			})
			res.Service, res.Kind, res.Target = name, CheckPort, addr
			log.Info("smoke check", "service", name, "kind", CheckPort, "target", addr, "ok", res.OK(), "attempts", res.Attempts)
			results = append(results, res)
		}
		if svc.Healthcheck == nil {
			continue
		}
		results = append(results, checkHealth(ctx, name, svc, opts, log))
	}
	return results, nil
}

// Failed combines the errors of every failed check, or returns nil.
func Failed(results []Result) error {
	var errs error
	for _, r := range results {
		if r.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s %s %s: %w", r.Service, r.Kind, r.Target, r.Err))
		}
	}
	return errs
}

func checkHealth(ctx context.Context, name string, svc *stack.Service, opts Options, log *slog.Logger) Result {
	res := Result{Service: name, Kind: CheckHealth, Target: svc.Healthcheck.Path}
	mapping, ok := svc.PortFor(svc.HealthPort())
	if !ok || mapping.HostPort == 0 {
		res.Err = fmt.Errorf("container port %d is not published", svc.HealthPort())
		return res
	}
	base := "http://" + net.JoinHostPort(hostFor(mapping, opts.Host), strconv.Itoa(mapping.HostPort))
	res.Target = base + svc.Healthcheck.Path
	api, err := client.New(base)
	if err != nil {
		res.Err = err
		return res
	}
	checked := retry(ctx, opts, func(ctx context.Context) error {
		_, err := api.Check(ctx, svc.Healthcheck.Path)
		return err
	})
	res.Attempts, res.Duration, res.Err = checked.Attempts, checked.Duration, checked.Err
	log.Info("smoke check", "service", name, "kind", CheckHealth, "target", res.Target, "ok", res.OK(), "attempts", res.Attempts)
	return res
}

func retry(ctx context.Context, opts Options, fn func(context.Context) error) Result {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = opts.Interval
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = opts.Timeout

	var res Result
	start := time.Now()
	res.Err = backoff.Retry(func() error {
		res.Attempts++
		return fn(ctx)
	}, backoff.WithContext(policy, ctx))
	res.Duration = time.Since(start)
	return res
}

func dial(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// hostFor prefers the mapping's own bind address unless it is a wildcard.
func hostFor(p stack.PortMapping, fallback string) string {
	ip := strings.TrimSpace(p.HostIP)
	if ip == "" || ip == "0.0.0.0" || ip == "::" {
		return fallback
	}
	return ip
}
