package xray

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"fastnodes/internal/model"
)

func TestOutboundVariants(t *testing.T) {
	tests := []struct {
		name     string
		cfg      model.EngineConfig
		protocol string
		stream   bool
	}{
		{"vmess", &model.VMessConfig{Addr: model.Addr{Server: "1.1.1.1", Port: 443}, UUID: "id", Transport: model.Transport{Network: "ws", Security: "tls"}}, "vmess", true},
		{"vless", &model.VLessConfig{Addr: model.Addr{Server: "1.1.1.1", Port: 443}, UUID: "id", Flow: "xtls-rprx-vision", Transport: model.Transport{Security: "reality", PublicKey: "k"}}, "vless", true},
		{"trojan", &model.TrojanConfig{Addr: model.Addr{Server: "h.example.com", Port: 443}, Password: "pw", Transport: model.Transport{Security: "tls"}}, "trojan", true},
		{"ss", &model.ShadowsocksConfig{Addr: model.Addr{Server: "2.2.2.2", Port: 8388}, Cipher: "aes-256-gcm", Password: "pw"}, "shadowsocks", false},
		{"ss obfs", &model.ShadowsocksConfig{Addr: model.Addr{Server: "2.2.2.2", Port: 80}, Cipher: "aes-256-gcm", Password: "pw", ObfsHost: "cdn.example.com"}, "shadowsocks", true},
		{"hysteria2", &model.Hysteria2Config{Addr: model.Addr{Server: "3.3.3.3", Port: 443}, Password: "pw"}, "hysteria2", true},
		{"socks", &model.SocksConfig{Addr: model.Addr{Server: "4.4.4.4", Port: 1080}}, "socks", false},
		{"https", &model.HTTPConfig{Addr: model.Addr{Server: "5.5.5.5", Port: 443}, TLS: true}, "http", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Outbound(tt.cfg)
			if err != nil {
				t.Fatalf("Outbound: %v", err)
			}
			if out["protocol"] != tt.protocol || out["tag"] != "proxy" {
				t.Errorf("protocol = %v, tag = %v", out["protocol"], out["tag"])
			}
			if _, ok := out["streamSettings"]; ok != tt.stream {
				t.Errorf("streamSettings present = %v, want %v", ok, tt.stream)
			}
		})
	}
}

func TestOutboundUnsupported(t *testing.T) {
	_, err := Outbound(&model.TuicConfig{Addr: model.Addr{Server: "1.1.1.1", Port: 443}, UUID: "u"})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
	if _, err := Outbound(nil); err == nil {
		t.Fatal("nil config accepted")
	}
}

func TestDocumentShape(t *testing.T) {
	doc, err := Document(&model.SocksConfig{Addr: model.Addr{Server: "4.4.4.4", Port: 1080}}, 20001)
	if err != nil {
		t.Fatal(err)
	}
	var parsed struct {
		Inbounds []struct {
			Listen   string `json:"listen"`
			Port     int    `json:"port"`
			Protocol string `json:"protocol"`
		} `json:"inbounds"`
		Outbounds []map[string]interface{} `json:"outbounds"`
	}
	if err := json.Unmarshal(doc, &parsed); err != nil {
		t.Fatal(err)
	}
	if len(parsed.Inbounds) != 1 || len(parsed.Outbounds) != 1 {
		t.Fatalf("got %d inbounds, %d outbounds", len(parsed.Inbounds), len(parsed.Outbounds))
	}
	in := parsed.Inbounds[0]
	if in.Listen != ListenAddr || in.Port != 20001 || in.Protocol != "socks" {
		t.Errorf("inbound = %+v", in)
	}

	if _, err := Document(&model.SocksConfig{}, 0); err == nil {
		t.Error("port 0 accepted")
	}
}

func TestPrepareValidates(t *testing.T) {
	if _, err := Prepare(&model.SocksConfig{Addr: model.Addr{Server: "4.4.4.4", Port: 1080}}, 20002); err != nil {
		t.Fatalf("valid socks outbound rejected: %v", err)
	}
	if _, err := Build([]byte(`{"outbounds":[{"protocol":"no-such-protocol"}]}`)); err == nil {
		t.Fatal("unknown protocol accepted")
	}
	if _, err := Build([]byte(`not json`)); err == nil {
		t.Fatal("garbage accepted")
	}
}

func TestProcessEngineCleansUp(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	// The config path lands in $0 and is otherwise ignored.
	e := NewProcessEngine(sh, []string{"-c", "exec sleep 30", ConfigPlaceholder})

	inst, err := e.Start(context.Background(), []byte(`{}`))
	if err != nil {
		t.Skipf("cannot start %s: %v", sh, err)
	}
	p := inst.(*process)
	if _, err := os.Stat(p.path); err != nil {
		t.Fatalf("temp config missing while running: %v", err)
	}
	if filepath.Dir(p.path) != filepath.Clean(os.TempDir()) {
		t.Errorf("config written to %s", p.path)
	}

	done := make(chan error, 1)
	go func() { done <- inst.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	if _, err := os.Stat(p.path); !os.IsNotExist(err) {
		t.Errorf("temp config not removed: %v", err)
	}
	if err := inst.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestProcessEngineKilledOnCancel(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	inst, err := NewProcessEngine(sh, []string{"-c", "exec sleep 30", ConfigPlaceholder}).Start(ctx, []byte(`{}`))
	if err != nil {
		t.Skipf("cannot start %s: %v", sh, err)
	}
	<-ctx.Done()

	start := time.Now()
	inst.Close()
	if time.Since(start) > 3*time.Second {
		t.Error("process outlived its context")
	}
	if _, err := os.Stat(inst.(*process).path); !os.IsNotExist(err) {
		t.Errorf("temp config not removed: %v", err)
	}
}

func TestProcessEngineStartFailure(t *testing.T) {
	e := NewProcessEngine(filepath.Join(t.TempDir(), "missing-binary"), nil)
	if _, err := e.Start(context.Background(), []byte(`{}`)); err == nil {
		t.Fatal("missing binary started")
	}
}

func TestNewEngine(t *testing.T) {
	if e, err := NewEngine("", "xray", nil); err != nil {
		t.Fatal(err)
	} else if pe := e.(*ProcessEngine); pe.Args[2] != ConfigPlaceholder {
		t.Errorf("default args = %v", pe.Args)
	}
	if _, err := NewEngine("embedded", "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := NewEngine("wasm", "", nil); err == nil {
		t.Fatal("unknown engine accepted")
	}
}
