package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single check when the caller's context has no
// deadline.
const DefaultTimeout = 10 * time.Second

// Checker runs one kind of check.
type Checker interface {
	Check(ctx context.Context, t Target) (bool, error)
}

// Target is a parsed probe target.
type Target struct {
	Scheme string // "http", "https" or "tcp"
	Host   string // host:port for tcp, host[:port] for http
	URL    string // full URL for http(s)
}

// ParseTarget parses a target string. A bare host:port is a TCP target.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, errors.New("empty target")
	}
	if !strings.Contains(raw, "://") {
		raw = "tcp://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("parse target %q: %w", raw, err)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("target %q has no host", raw)
	}

	switch u.Scheme {
	case "http", "https":
		return Target{Scheme: u.Scheme, Host: u.Host, URL: u.String()}, nil
	case "tcp":
		if u.Port() == "" {
			return Target{}, fmt.Errorf("tcp target %q needs a port", raw)
		}
		return Target{Scheme: "tcp", Host: u.Host}, nil
	default:
		return Target{}, fmt.Errorf("unsupported target scheme %q", u.Scheme)
	}
}

// HTTPChecker issues a GET and treats 2xx and 3xx as healthy.
type HTTPChecker struct {
	Client *http.Client
}

// Check implements Checker.
func (c HTTPChecker) Check(ctx context.Context, t Target) (bool, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "cadence-probe")

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("GET %s: %w", t.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode < http.StatusBadRequest, nil
}

// TCPChecker opens a TCP connection and closes it.
type TCPChecker struct {
	Dialer net.Dialer
}

// Check implements Checker. A refused or unreachable connection is
// unhealthy; only a cancelled context is a fault.
func (c TCPChecker) Check(ctx context.Context, t Target) (bool, error) {
	conn, err := c.Dialer.DialContext(ctx, "tcp", t.Host)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, fmt.Errorf("dial %s: %w", t.Host, ctxErr)
		}
		return false, nil
	}
	conn.Close()
	return true, nil
}

// Prober dispatches targets to checkers by scheme, rate limited per host.
// It implements engine.Prober.
type Prober struct {
	checkers map[string]Checker
	limiter  *Limiter
	timeout  time.Duration
}

// Option configures a Prober.
type Option func(*Prober)

// WithLimiter rate limits checks per target host.
func WithLimiter(l *Limiter) Option {
	return func(p *Prober) {
		p.limiter = l
	}
}

// WithTimeout bounds each check. Default: DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		p.timeout = d
	}
}

// WithChecker registers c for scheme, replacing the default.
func WithChecker(scheme string, c Checker) Option {
	return func(p *Prober) {
		p.checkers[scheme] = c
	}
}

// New creates a Prober with HTTP(S) and TCP checkers.
func New(opts ...Option) *Prober {
	httpChecker := HTTPChecker{Client: &http.Client{
		// Redirects are followed; the final status decides.
		Timeout: DefaultTimeout,
	}}
	p := &Prober{
		checkers: map[string]Checker{
			"http":  httpChecker,
			"https": httpChecker,
			"tcp":   TCPChecker{},
		},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe checks target once.
func (p *Prober) Probe(ctx context.Context, target string) (bool, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return false, err
	}
	checker, ok := p.checkers[t.Scheme]
	if !ok {
		return false, fmt.Errorf("no checker for scheme %q", t.Scheme)
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, t.Host); err != nil {
			return false, fmt.Errorf("rate limit %s: %w", t.Host, err)
		}
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return checker.Check(ctx, t)
}
