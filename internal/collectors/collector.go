// Package collectors fetches raw subscription text from configured sources.
package collectors

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"fastnodes/internal/xray/parser"
)

type Collector interface {
	// Collect returns the non-empty lines of one source.
	Collect(ctx context.Context, params map[string]interface{}) ([]string, error)
}

type Factory func() Collector

var registry = make(map[string]Factory)

func Register(name string, factory Factory) {
	registry[name] = factory
}

func Get(name string) (Collector, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("collector plugin '%s' not found", name)
	}
	return factory(), nil
}

// Names lists the registered collector types.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ForLocation picks a collector type and params for a bare location:
// http(s) URLs use "http", anything else is read as a local file.
func ForLocation(location string) (string, map[string]interface{}) {
	lower := strings.ToLower(location)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return "http", map[string]interface{}{"url": location}
	}
	return "file", map[string]interface{}{"path": location}
}

// SplitLines turns a fetched body into lines. A body that decodes entirely as
// base64 to valid UTF-8 is replaced by its decoded text first.
func SplitLines(body string) []string {
	trimmed := strings.TrimSpace(body)
	if decoded, ok := decodeBlob(trimmed); ok {
		trimmed = decoded
	}
	fields := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	lines := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			lines = append(lines, f)
		}
	}
	return lines
}

func decodeBlob(s string) (string, bool) {
	if s == "" || strings.Contains(s, "://") {
		return "", false
	}
	decoded, err := parser.DecodeBase64(s)
	if err != nil || decoded == "" || !utf8.ValidString(decoded) {
		return "", false
	}
	return decoded, true
}

// StringParam reads a string param, reporting a missing or mistyped key.
func StringParam(params map[string]interface{}, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing '%s' in collector config", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("collector param '%s' must be a non-empty string", key)
	}
	return s, nil
}
