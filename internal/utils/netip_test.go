package utils

import (
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		expected   string
	}{
		{name: "remote addr", remote: "10.0.0.7:5123", expected: "10.0.0.7"},
		{name: "headers ignored when untrusted", remote: "10.0.0.7:5123",
			headers: map[string]string{"X-Forwarded-For": "1.2.3.4"}, expected: "10.0.0.7"},
		{name: "cloudflare header first", remote: "127.0.0.1:1", trustProxy: true,
			headers: map[string]string{"CF-Connecting-IP": "9.9.9.9", "X-Forwarded-For": "1.2.3.4"}, expected: "9.9.9.9"},
		{name: "left-most forwarded", remote: "127.0.0.1:1", trustProxy: true,
			headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, expected: "1.2.3.4"},
		{name: "garbage header falls back", remote: "127.0.0.1:1", trustProxy: true,
			headers: map[string]string{"X-Real-IP": "nope"}, expected: "127.0.0.1"},
		{name: "v6 remote", remote: "[::1]:80", expected: "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			addr, ok := ClientIP(r, tt.trustProxy)
			if !ok {
				t.Fatalf("ClientIP() found no address")
			}
			if addr.String() != tt.expected {
				t.Errorf("ClientIP() = %s, want %s", addr, tt.expected)
			}
		})
	}
}

func TestIPMatcher(t *testing.T) {
	m := NewIPMatcher([]string{"10.0.0.0/8", " 192.168.1.5 ", "", "not-an-ip", "::ffff:172.16.0.1"})

	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}
	if got := m.Invalid(); len(got) != 1 || got[0] != "not-an-ip" {
		t.Errorf("Invalid() = %v, want [not-an-ip]", got)
	}

	tests := []struct {
		ip       string
		expected bool
	}{
		{"10.20.30.40", true},
		{"192.168.1.5", true},
		{"192.168.1.6", false},
		{"172.16.0.1", true},
		{"11.0.0.1", false},
	}
	for _, tt := range tests {
		if got := m.Allow(netip.MustParseAddr(tt.ip)); got != tt.expected {
			t.Errorf("Allow(%s) = %v, want %v", tt.ip, got, tt.expected)
		}
	}

	if m.Allow(netip.Addr{}) {
		t.Error("Allow(zero) = true, want false")
	}
	if !NewIPMatcher(nil).IsEmpty() {
		t.Error("NewIPMatcher(nil) should be empty")
	}
}
