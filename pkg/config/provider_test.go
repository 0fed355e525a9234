package config

import (
	"os"
	"testing"
	"time"
)

func TestProviderOverrideWinsOverDefault(t *testing.T) {
	p := NewProvider(
		map[string]interface{}{"host": "127.0.0.1", "port": 9000},
		map[string]interface{}{"port": 9100},
	)
	if got := p.Host(); got != "127.0.0.1" {
		t.Errorf("Host() = %q, want 127.0.0.1 (falls through to default)", got)
	}
	if got := p.Port(); got != 9100 {
		t.Errorf("Port() = %d, want 9100 (override wins)", got)
	}
}

func TestProviderFallsBackWhenKeyAbsent(t *testing.T) {
	p := NewProvider(nil, nil)
	if got := p.Host(); got != "0.0.0.0" {
		t.Errorf("Host() = %q, want default 0.0.0.0", got)
	}
	if got := p.MailboxCapacity(); got != 256 {
		t.Errorf("MailboxCapacity() = %d, want default 256", got)
	}
	if got := p.Debug(); got != false {
		t.Errorf("Debug() = %v, want default false", got)
	}
}

func TestProviderDurationCoercion(t *testing.T) {
	p := NewProvider(map[string]interface{}{
		"watchdog_ping_timeout":  2,
		"watchdog_check_timeout": "10s",
	}, nil)
	if got := p.WatchdogPingTimeout(); got != 2*time.Second {
		t.Errorf("WatchdogPingTimeout() = %v, want 2s (bare int means seconds)", got)
	}
	if got := p.WatchdogCheckTimeout(); got != 10*time.Second {
		t.Errorf("WatchdogCheckTimeout() = %v, want 10s (duration string parsed directly)", got)
	}
}

func TestProviderBoolFromString(t *testing.T) {
	p := NewProvider(map[string]interface{}{"debug": "true"}, nil)
	if !p.Debug() {
		t.Error("Debug() = false, want true (string \"true\" coerced)")
	}
}

func TestNewProviderFromYAML(t *testing.T) {
	path := createTempFile(t, "provider.yaml", "host: \"127.0.0.1\"\nport: 9000\ndebug: true\n")
	defer os.Remove(path)

	p, err := NewProviderFromYAML(path, map[string]interface{}{"port": 9100})
	if err != nil {
		t.Fatalf("NewProviderFromYAML() error = %v", err)
	}
	if got := p.Host(); got != "127.0.0.1" {
		t.Errorf("Host() = %q, want 127.0.0.1 (from the YAML default layer)", got)
	}
	if got := p.Port(); got != 9100 {
		t.Errorf("Port() = %d, want 9100 (override wins over the YAML value)", got)
	}
	if !p.Debug() {
		t.Error("Debug() = false, want true (from the YAML default layer)")
	}
}
