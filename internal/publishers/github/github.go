package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fastnodes/internal/logger"
	"fastnodes/internal/publishers"
)

// Publisher uploads one grouping through the GitHub contents API.
type Publisher struct{}

type fileRequest struct {
	Message string `json:"message"`
	Content string `json:"content"` // Base64 encoded content
	Sha     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type fileResponse struct {
	Sha string `json:"sha"`
}

type settings struct {
	token, owner, repo, path, branch, message string
	apiURL                                    string
	retries                                   int
	client                                    *http.Client
}

func parseSettings(config map[string]interface{}) (*settings, error) {
	s := &settings{}
	s.token, _ = config["token"].(string)
	s.owner, _ = config["owner"].(string)
	s.repo, _ = config["repo"].(string)
	s.path, _ = config["path"].(string)
	s.branch, _ = config["branch"].(string)
	s.message, _ = config["message"].(string)
	if s.token == "" || s.owner == "" || s.repo == "" || s.path == "" {
		return nil, fmt.Errorf("github publisher requires token, owner, repo, and path")
	}
	if s.message == "" {
		s.message = "Update proxy subscription [fastnodes]"
	}

	apiBase, _ := config["api_url"].(string)
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}
	s.apiURL = fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		strings.TrimRight(apiBase, "/"), s.owner, s.repo, strings.TrimPrefix(s.path, "/"))

	timeout := 30 * time.Second
	if t, ok := config["_timeout"].(time.Duration); ok && t > 0 {
		timeout = t
	}
	s.retries, _ = config["retries"].(int)
	s.client = &http.Client{Timeout: timeout}

	if proxyStr, ok := config["proxy_url"].(string); ok && proxyStr != "" {
		u, err := url.Parse(proxyStr)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy_url: %w", err)
		}
		s.client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		logger.Log.Debugf("GitHub Publisher using proxy: %s", proxyStr)
	}
	return s, nil
}

func (p *Publisher) Publish(ctx context.Context, groupings []publishers.Grouping, config map[string]interface{}) error {
	s, err := parseSettings(config)
	if err != nil {
		return err
	}

	name, _ := config["grouping"].(string)
	if name == "" {
		name = "everything"
	}
	g, ok := publishers.Find(groupings, name)
	if !ok {
		return fmt.Errorf("github publisher: grouping %q not available", name)
	}
	payload, err := publishers.Payload(g, config)
	if err != nil {
		return err
	}

	sha, err := s.currentSha(ctx)
	if err != nil {
		return err
	}
	return s.upload(ctx, payload, sha)
}

// currentSha returns the existing file's blob SHA, or "" if it does not exist.
func (s *settings) currentSha(ctx context.Context) (string, error) {
	var resp *http.Response
	err := s.retry(ctx, "fetch file info", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL, nil)
		if err != nil {
			return err
		}
		s.headers(req)
		if s.branch != "" {
			q := req.URL.Query()
			q.Add("ref", s.branch)
			req.URL.RawQuery = q.Encode()
		}
		r, err := s.client.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode != http.StatusOK && r.StatusCode != http.StatusNotFound {
			r.Body.Close()
			return fmt.Errorf("status %d", r.StatusCode)
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("github fetch failed after retries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		logger.Log.Debugf("GitHub: File not found, creating new...")
		return "", nil
	}
	var existing fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&existing); err != nil {
		return "", fmt.Errorf("failed to parse github response: %w", err)
	}
	logger.Log.Debugf("GitHub: File exists (SHA: %s), updating...", existing.Sha)
	return existing.Sha, nil
}

func (s *settings) upload(ctx context.Context, payload []byte, sha string) error {
	body, err := json.Marshal(fileRequest{
		Message: s.message,
		Content: base64.StdEncoding.EncodeToString(payload),
		Sha:     sha,
		Branch:  s.branch,
	})
	if err != nil {
		return err
	}
	err = s.retry(ctx, "upload file", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.apiURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		s.headers(req)
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("status %d: %s", resp.StatusCode, string(msg))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("github upload failed after retries: %w", err)
	}
	return nil
}

func (s *settings) headers(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
}

func (s *settings) retry(ctx context.Context, what string, fn func() error) error {
	var err error
	for i := 0; i <= s.retries; i++ {
		logger.Log.Debugf("GitHub: %s (Attempt %d/%d)", what, i+1, s.retries+1)
		if err = fn(); err == nil {
			return nil
		}
		if i < s.retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
	return err
}

func init() {
	publishers.Register("github", func() publishers.Publisher { return &Publisher{} })
}
