// Package geoip tags hosts with the country they are served from.
package geoip

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/oschwald/geoip2-golang"
	"golang.org/x/sync/singleflight"

	"fastnodes/internal/logger"
)

// UnknownCode is used whenever a country cannot be determined.
const UnknownCode = "XX"

// Country is an ISO alpha-2 code with its English name.
type Country struct {
	Code string
	Name string
}

// Unknown is returned on any lookup or resolution failure.
var Unknown = Country{Code: UnknownCode, Name: "Unknown"}

// Result is a resolved lookup. IP is nil when the host did not resolve.
type Result struct {
	Country Country
	IP      net.IP
}

// CountryReader is the subset of *geoip2.Reader the resolver needs.
type CountryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
}

// LookupIPFunc resolves a hostname.
type LookupIPFunc func(ctx context.Context, host string) ([]net.IP, error)

// Cache is a concurrency-safe map keyed by host and by resolved IP.
type Cache struct {
	mu sync.RWMutex
	m  map[string]Result
}

func NewCache() *Cache {
	return &Cache{m: make(map[string]Result)}
}

func (c *Cache) Get(key string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.m[key]
	return r, ok
}

func (c *Cache) Put(res Result, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.m[k] = res
	}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Resolver maps hosts to countries. A missing database makes every country
// Unknown, but hostnames are still resolved.
type Resolver struct {
	db         CountryReader
	lookupIP   LookupIPFunc
	dnsTimeout time.Duration
	cache      *Cache
	group      singleflight.Group
	closer     func() error
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLookupIP replaces the system DNS resolver.
func WithLookupIP(fn LookupIPFunc) Option {
	return func(r *Resolver) { r.lookupIP = fn }
}

// WithDNSTimeout bounds each hostname resolution.
func WithDNSTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.dnsTimeout = d }
}

// NewResolver builds a resolver over db, which may be nil.
func NewResolver(db CountryReader, cache *Cache, opts ...Option) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	r := &Resolver{
		db:         db,
		cache:      cache,
		dnsTimeout: 3 * time.Second,
		lookupIP: func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip", host)
		},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Open loads the MMDB country database at path. A missing or unreadable file
// is logged and yields a resolver without a database.
func Open(path string, cache *Cache, opts ...Option) *Resolver {
	if path == "" {
		logger.Log.Warn("No GeoIP database configured. Every country will be XX.")
		return NewResolver(nil, cache, opts...)
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		logger.Log.Warnf("Failed to open Country DB at %s: %v. Every country will be XX.", path, err)
		return NewResolver(nil, cache, opts...)
	}
	logger.Log.Infof("Loaded GeoIP database: %s", path)
	r := NewResolver(reader, cache, opts...)
	r.closer = reader.Close
	return r
}

// Lookup returns the country of hostOrIP and its first resolved address.
// Concurrent lookups of the same host share one resolution.
func (r *Resolver) Lookup(ctx context.Context, hostOrIP string) Result {
	key := strings.ToLower(hostOrIP)
	if res, ok := r.cache.Get(key); ok {
		return res
	}
	v, _, _ := r.group.Do(key, func() (interface{}, error) {
		return r.resolve(ctx, key), nil
	})
	return v.(Result)
}

func (r *Resolver) resolve(ctx context.Context, host string) Result {
	ip := net.ParseIP(host)
	if ip == nil {
		ctx, cancel := context.WithTimeout(ctx, r.dnsTimeout)
		defer cancel()
		ips, err := r.lookupIP(ctx, host)
		if err != nil || len(ips) == 0 {
			logger.Log.Debugf("dns %s: %v", host, err)
			res := Result{Country: Unknown}
			r.cache.Put(res, host)
			return res
		}
		ip = ips[0]
	}

	ipKey := ip.String()
	if res, ok := r.cache.Get(ipKey); ok {
		r.cache.Put(res, host)
		return res
	}

	res := Result{Country: r.country(ip), IP: ip}
	r.cache.Put(res, host, ipKey)
	return res
}

func (r *Resolver) country(ip net.IP) Country {
	if r.db == nil {
		return Unknown
	}
	rec, err := r.db.Country(ip)
	if err != nil || rec == nil || rec.Country.IsoCode == "" {
		return Unknown
	}
	name := rec.Country.Names["en"]
	if name == "" {
		name = Name(rec.Country.IsoCode)
	}
	return Country{Code: strings.ToUpper(rec.Country.IsoCode), Name: name}
}

// Close releases the database, if one was opened.
func (r *Resolver) Close() error {
	if r.closer == nil {
		return nil
	}
	if err := r.closer(); err != nil {
		return fmt.Errorf("close geoip db: %w", err)
	}
	return nil
}
