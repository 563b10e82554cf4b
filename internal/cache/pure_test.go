package cache

import (
	"testing"

	"github.com/recast/recast/internal/model"
)

func TestHashIP_Deterministic(t *testing.T) {
	t.Parallel()

	ip := "192.168.1.100"

	hash1 := hashIP(ip)
	hash2 := hashIP(ip)

	if hash1 != hash2 {
		t.Error("Same IP should produce same hash")
	}
}

func TestHashIP_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip   string
	}{
		{"IPv4", "192.168.1.1"},
		{"IPv4 localhost", "127.0.0.1"},
		{"IPv6 localhost", "::1"},
		{"IPv6 full", "2001:0db8:85a3:0000:0000:8a2e:0370:7334"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hash := hashIP(tt.ip)
			// hashIP uses first 8 bytes of SHA256, encoded as 16 hex chars
			if len(hash) != 16 {
				t.Errorf("hashIP(%q) length = %d, want 16", tt.ip, len(hash))
			}
		})
	}
}

func TestHashIP_Different(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip1  string
		ip2  string
	}{
		{"different IPv4", "192.168.1.1", "192.168.1.2"},
		{"different last octet", "10.0.0.1", "10.0.0.2"},
		{"IPv4 vs IPv6", "127.0.0.1", "::1"},
		{"public vs private", "8.8.8.8", "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hash1 := hashIP(tt.ip1)
			hash2 := hashIP(tt.ip2)

			if hash1 == hash2 {
				t.Errorf("Different IPs should produce different hashes: %q and %q both produced %s", tt.ip1, tt.ip2, hash1)
			}
		})
	}
}

func TestIdentity_RoundTrip(t *testing.T) {
	t.Parallel()

	in := &model.Identity{
		UserID: "u1",
		Email:  "u1@example.com",
		Plan:   model.PlanPro,
		Method: model.AuthMethodAPIKey,
		KeyID:  "k1",
	}

	data, err := encodeIdentity(in)
	if err != nil {
		t.Fatalf("encodeIdentity() error = %v", err)
	}

	out, ok := decodeIdentity(data)
	if !ok {
		t.Fatal("decodeIdentity() ok = false")
	}
	if *out != *in {
		t.Errorf("decoded = %+v, want %+v", out, in)
	}
}

func TestIdentity_DecodeCorrupt(t *testing.T) {
	t.Parallel()

	for _, data := range []string{"", "not json", `{"email":"x"}`} {
		if _, ok := decodeIdentity([]byte(data)); ok {
			t.Errorf("decodeIdentity(%q) ok = true, want false", data)
		}
	}
}
