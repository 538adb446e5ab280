package tester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// NewSOCKSClient returns an HTTP client that dials through the SOCKS5
// endpoint on 127.0.0.1:port.
func NewSOCKSClient(port int, timeout time.Duration) (*http.Client, error) {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	dialer, err := proxy.SOCKS5("tcp", addr, nil, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}
	cd, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("socks5 dialer does not support contexts")
	}

	return &http.Client{
		Transport: &http.Transport{
			DialContext:           cd.DialContext,
			ResponseHeaderTimeout: timeout,
			DisableKeepAlives:     true,
			MaxIdleConns:          1,
		},
		Timeout: timeout,
	}, nil
}

// DirectClient returns a client for tunnel-free requests.
func DirectClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ResponseHeaderTimeout: timeout,
			DisableKeepAlives:     true,
		},
		Timeout: timeout,
	}
}

// roundTrip issues one request and returns its duration. Any 2xx or 3xx
// status counts as success.
func roundTrip(ctx context.Context, client *http.Client, method, url string, timeout time.Duration) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return 0, fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return elapsed, nil
}

func millis(d time.Duration) int32 {
	ms := d.Milliseconds()
	if ms < 1 {
		return 1
	}
	if ms > 1<<31-1 {
		return 1<<31 - 1
	}
	return int32(ms)
}
