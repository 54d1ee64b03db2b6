package conn

import (
	"net"
	"net/netip"
	"testing"
)

// net.IP carries IPv4 addresses in both 4- and 16-byte forms; flow
// matching has to land on the same unmapped representation either way.
func TestToNetip(t *testing.T) {
	for _, tc := range []struct {
		in   net.IP
		want netip.Addr
	}{
		{net.ParseIP("10.0.0.5"), netip.MustParseAddr("10.0.0.5")},
		{net.ParseIP("10.0.0.5").To4(), netip.MustParseAddr("10.0.0.5")},
		{net.ParseIP("2001:db8::5"), netip.MustParseAddr("2001:db8::5")},
	} {
		got, err := toNetip(tc.in)
		if err != nil {
			t.Errorf("toNetip(%v): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("toNetip(%v) = %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestToNetip_badAddress(t *testing.T) {
	if _, err := toNetip(net.IP{1, 2, 3}); err == nil {
		t.Error("expected error for malformed address")
	}
}
