package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"fastnodes/internal/collectors"
	"fastnodes/internal/logger"
)

// DefaultTimeout bounds a single source fetch.
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a feed is read.
const maxBody = 32 << 20

type URLCollector struct {
	Timeout time.Duration
}

func (c *URLCollector) Collect(ctx context.Context, config map[string]interface{}) ([]string, error) {
	targetURL, err := collectors.StringParam(config, "url")
	if err != nil {
		return nil, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	// Optional upstream proxy for the fetch itself
	if proxyStr, ok := config["proxy_url"].(string); ok && proxyStr != "" {
		pURL, err := url.Parse(proxyStr)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy_url: %w", err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(pURL)}
		logger.Log.Debugf("HTTP Collector using proxy: %s", proxyStr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if ua, ok := config["user_agent"].(string); ok && ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	logger.Log.Debugf("Fetching URL: %s", targetURL)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("non-2xx status code: %d", resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return collectors.SplitLines(string(bodyBytes)), nil
}

func init() {
	collectors.Register("http", func() collectors.Collector {
		return &URLCollector{}
	})
}
