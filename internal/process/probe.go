package process

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Probe checks whether a service is reachable.
type Probe interface {
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Check(ctx context.Context) error { return f(ctx) }

// TCPProbe succeeds once a plain TCP connect to Host:Port works.
type TCPProbe struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// NewTCPProbe creates a TCP probe against the loopback interface.
func NewTCPProbe(port int) *TCPProbe {
	return &TCPProbe{Host: "127.0.0.1", Port: port}
}

// Check dials the port once.
func (p *TCPProbe) Check(ctx context.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}

	address := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return conn.Close()
}

// HTTPProbe succeeds once URL answers with a status below 500.
type HTTPProbe struct {
	URL    string
	Client *http.Client
}

// NewHTTPProbe creates an HTTP probe for url.
func NewHTTPProbe(url string) *HTTPProbe {
	return &HTTPProbe{URL: url}
}

// Check performs one GET request.
func (p *HTTPProbe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", p.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s returned status %d", p.URL, resp.StatusCode)
	}
	return nil
}
