package quota

import (
	"net"
	"net/netip"
	"strings"
)

// UnknownClient is the shared bucket for clients without a usable address.
const UnknownClient = "unknown"

// NormalizeClientID reduces a remote address to the quota key.
//
// It accepts "host:port" or a bare host, strips IPv4-mapped IPv6 prefixes
// and zones, and maps anything unparseable to UnknownClient.
func NormalizeClientID(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return UnknownClient
	}

	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")

	ip, err := netip.ParseAddr(host)
	if err != nil {
		return UnknownClient
	}
	return ip.Unmap().WithZone("").String()
}
