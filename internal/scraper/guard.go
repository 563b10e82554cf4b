package scraper

import (
	"errors"
	"net"
	"net/netip"
	"strings"
	"syscall"
)

// ErrBlockedAddress is returned when a fetch would connect to a private,
// loopback or link-local address.
var ErrBlockedAddress = errors.New("address not allowed")

// blockedPrefixes contains private and internal ranges.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"), // link-local, cloud metadata
	netip.MustParsePrefix("100.64.0.0/10"),  // carrier-grade NAT
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// isBlockedAddr reports whether addr falls in a blocked range.
func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// isLocalHostname catches names that never resolve to a public address.
func isLocalHostname(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local") ||
		strings.HasSuffix(host, ".internal")
}

// guardDial runs after DNS resolution, so redirects and rebinding are
// checked against the address actually dialed.
func guardDial(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return ErrBlockedAddress
	}
	if isBlockedAddr(addr) {
		return ErrBlockedAddress
	}
	return nil
}
