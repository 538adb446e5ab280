package geoip

import (
	"context"
	"errors"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/oschwald/geoip2-golang"
)

type fakeDB map[string]string

func (f fakeDB) Country(ip net.IP) (*geoip2.Country, error) {
	code, ok := f[ip.String()]
	if !ok {
		return nil, errors.New("not found")
	}
	c := &geoip2.Country{}
	c.Country.IsoCode = code
	c.Country.Names = map[string]string{"en": "Name of " + code}
	return c, nil
}

func TestLookupLiteralIP(t *testing.T) {
	r := NewResolver(fakeDB{"1.2.3.4": "de"}, nil)
	res := r.Lookup(context.Background(), "1.2.3.4")
	if res.Country.Code != "DE" || res.Country.Name != "Name of de" {
		t.Errorf("got %+v", res.Country)
	}
	if !res.IP.Equal(net.ParseIP("1.2.3.4")) {
		t.Errorf("ip = %v", res.IP)
	}

	if miss := r.Lookup(context.Background(), "5.6.7.8"); miss.Country != Unknown {
		t.Errorf("miss = %+v", miss.Country)
	}
}

func TestLookupHostname(t *testing.T) {
	var calls atomic.Int32
	dns := func(ctx context.Context, host string) ([]net.IP, error) {
		calls.Add(1)
		if host == "nx.example.com" {
			return nil, errors.New("no such host")
		}
		return []net.IP{net.ParseIP("9.9.9.9"), net.ParseIP("8.8.8.8")}, nil
	}
	cache := NewCache()
	r := NewResolver(fakeDB{"9.9.9.9": "US"}, cache, WithLookupIP(dns))

	res := r.Lookup(context.Background(), "Node.Example.com")
	if res.Country.Code != "US" || !res.IP.Equal(net.ParseIP("9.9.9.9")) {
		t.Fatalf("got %+v", res)
	}
	r.Lookup(context.Background(), "node.example.com")
	if calls.Load() != 1 {
		t.Errorf("dns calls = %d, want 1", calls.Load())
	}
	if _, ok := cache.Get("9.9.9.9"); !ok {
		t.Error("resolved ip not cached")
	}

	nx := r.Lookup(context.Background(), "nx.example.com")
	if nx.Country != Unknown || nx.IP != nil {
		t.Errorf("nx = %+v", nx)
	}
}

func TestLookupCoalescesConcurrentCalls(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	dns := func(ctx context.Context, host string) ([]net.IP, error) {
		calls.Add(1)
		<-release
		return []net.IP{net.ParseIP("1.1.1.1")}, nil
	}
	r := NewResolver(nil, nil, WithLookupIP(dns))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Lookup(context.Background(), "slow.example.com")
		}()
	}
	for calls.Load() == 0 {
		runtime.Gosched()
	}
	close(release)
	wg.Wait()

	if n := calls.Load(); n > 10 || n < 1 {
		t.Fatalf("dns calls = %d", n)
	}
	if res := r.Lookup(context.Background(), "slow.example.com"); res.Country != Unknown || res.IP == nil {
		t.Errorf("got %+v", res)
	}
}

func TestOpenMissingDatabase(t *testing.T) {
	r := Open(t.TempDir()+"/missing.mmdb", nil)
	if res := r.Lookup(context.Background(), "1.2.3.4"); res.Country != Unknown {
		t.Errorf("got %+v", res.Country)
	}
	if err := r.Close(); err != nil {
		t.Error(err)
	}
}

func TestGuessCountry(t *testing.T) {
	tests := []struct {
		host string
		want string
		ok   bool
	}{
		{"node.example.tw", "TW", true},
		{"taiwan-relay.example.com", "TW", true},
		{"edge.hongkong.example.net", "HK", true},
		{"fast-usa.example.org", "US", true},
		{"cdn.example.de", "DE", true},
		{"mirror.example.in", "IN", true},
		{"plain.example.com", "XX", false},
	}
	for _, tt := range tests {
		got, ok := GuessCountry(tt.host)
		if got.Code != tt.want || ok != tt.ok {
			t.Errorf("GuessCountry(%s) = %v, %v", tt.host, got, ok)
		}
	}
}

func TestFlag(t *testing.T) {
	tests := map[string]string{
		"US": "🇺🇸",
		"de": "🇩🇪",
		"XX": "🌍",
		"":   "🌍",
		"U1": "🌍",
	}
	for code, want := range tests {
		if got := Flag(code); got != want {
			t.Errorf("Flag(%q) = %q, want %q", code, got, want)
		}
	}
}
