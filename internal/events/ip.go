package events

import (
	"net"
	"strings"
)

// CoarsenIP zeroes the trailing component of an address: the last octet for
// IPv4 and the last 16-bit group for IPv6. Ports and IPv6 brackets are
// stripped first. Unparseable input yields "".
func CoarsenIP(raw string) string {
	host := strings.TrimSpace(raw)
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i]
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return ""
	}
	if v4 := ip.To4(); v4 != nil {
		out := make(net.IP, net.IPv4len)
		copy(out, v4)
		out[3] = 0
		return out.String()
	}
	out := make(net.IP, net.IPv6len)
	copy(out, ip.To16())
	out[14] = 0
	out[15] = 0
	return out.String()
}
