// Package privacy provides helpers for keeping identifying data out of logs.
package privacy

import (
	"net"
	"strings"
)

// AnonymizeIP truncates an IP address for logging: IPv4 keeps the first two
// octets, IPv6 keeps the first two groups. Invalid input returns "unknown"
// so a malformed address never leaks verbatim into a log line.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "unknown"
	}
	if v4 := parsed.To4(); v4 != nil {
		return strings.Join([]string{
			itoa(v4[0]), itoa(v4[1]), "x", "x",
		}, ".")
	}
	groups := strings.Split(parsed.String(), ":")
	if len(groups) < 2 {
		return "unknown"
	}
	return groups[0] + ":" + groups[1] + "::x"
}

func itoa(b byte) string {
	const digits = "0123456789"
	if b == 0 {
		return "0"
	}
	var buf [3]byte
	i := len(buf)
	for b > 0 {
		i--
		buf[i] = digits[b%10]
		b /= 10
	}
	return string(buf[i:])
}
