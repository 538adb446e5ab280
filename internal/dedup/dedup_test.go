package dedup

import (
	"fmt"
	"sync"
	"testing"

	"fastnodes/internal/model"
)

func TestKey(t *testing.T) {
	tests := []struct {
		proto  model.Protocol
		host   string
		port   uint16
		remark string
		want   string
	}{
		{model.VLess, "1.2.3.4", 443, "🇩🇪 Germany - VLESS - 1.2.3.4:443", "vless:1.2.3.4:443#🇩🇪germany-vless-1.2.3.4:443"},
		{model.Trojan, "Node.Example.COM", 8443, "  A\tB\nC ", "trojan:node.example.com:8443#abc"},
		{model.ShadowSocks, "::1", 80, "", "ss:::1:80#"},
	}
	for _, tt := range tests {
		if got := Key(tt.proto, tt.host, tt.port, tt.remark); got != tt.want {
			t.Errorf("Key(%s, %s, %d, %q) = %q, want %q", tt.proto, tt.host, tt.port, tt.remark, got, tt.want)
		}
	}
}

func TestKeyCollapsesCosmeticDifferences(t *testing.T) {
	a := Key(model.VMess, "h.example.com", 443, "US - VMESS")
	b := Key(model.VMess, "H.EXAMPLE.COM", 443, "us-vmess")
	if a != b {
		t.Errorf("%q != %q", a, b)
	}
}

func TestTryAdd(t *testing.T) {
	d := New()
	if !d.TryAdd("k") {
		t.Fatal("first add rejected")
	}
	if d.TryAdd("k") {
		t.Fatal("duplicate accepted")
	}
	if d.Len() != 1 {
		t.Fatalf("Len = %d", d.Len())
	}
}

func TestTryAddConcurrent(t *testing.T) {
	d := New()
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won = map[string]int{}
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				k := fmt.Sprintf("key-%d", i)
				if d.TryAdd(k) {
					mu.Lock()
					won[k]++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if len(won) != 100 {
		t.Fatalf("got %d keys", len(won))
	}
	for k, n := range won {
		if n != 1 {
			t.Errorf("%s added %d times", k, n)
		}
	}
}
