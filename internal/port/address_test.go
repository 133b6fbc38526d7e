package port

import (
	"testing"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"ipv4 localhost", "127.0.0.1:3000", "127.0.0.1", 3000, false},
		{"wildcard", "*:8080", "*", 8080, false},
		{"ipv6 loopback", "[::1]:3000", "::1", 3000, false},
		{"ipv6 full", "[fe80::1%lo0]:8443", "fe80::1%lo0", 8443, false},
		{"ipv6 empty host", "[]:443", "*", 443, false},
		{"empty host", ":9090", "*", 9090, false},
		{"port zero", "*:0", "*", 0, false},
		{"max port", "*:65535", "*", 65535, false},
		{"garbage", "garbage", "", 0, true},
		{"no port", "127.0.0.1:", "", 0, true},
		{"port not numeric", "*:http", "", 0, true},
		{"port too large", "*:70000", "", 0, true},
		{"negative port", "*:-1", "", 0, true},
		{"ipv6 missing bracket", "[::1:3000", "", 0, true},
		{"ipv6 missing colon", "[::1]3000", "", 0, true},
		{"empty", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, portNum, err := ParseAddress(tt.token)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got host=%q port=%d", host, portNum)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if host != tt.wantHost {
				t.Errorf("host: got %q, want %q", host, tt.wantHost)
			}
			if portNum != tt.wantPort {
				t.Errorf("port: got %d, want %d", portNum, tt.wantPort)
			}
		})
	}
}
