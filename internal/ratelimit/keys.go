package ratelimit

import (
	"net/netip"
	"strings"
)

// IPKey normalizes a client address for use as a limiter key. IPv4-mapped IPv6
// addresses collapse to IPv4 and other IPv6 addresses collapse to their /64,
// since one host usually controls a whole /64.
func IPKey(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "unknown"
	}
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return normalizeAddr(ap.Addr())
	}
	ip, err := netip.ParseAddr(strings.Trim(addr, "[]"))
	if err != nil {
		return addr
	}
	return normalizeAddr(ip)
}

func normalizeAddr(ip netip.Addr) string {
	ip = ip.Unmap().WithZone("")
	if ip.Is4() {
		return ip.String()
	}
	prefix, err := ip.Prefix(64)
	if err != nil {
		return ip.String()
	}
	return prefix.String()
}

// IdentityKey combines a network key with a business identity.
func IdentityKey(ipKey, identity string) string {
	if identity == "" {
		identity = "anonymous"
	}
	return ipKey + ":" + identity
}

// ChatKey keys the chat limiter by sender and room.
func ChatKey(sender, room string) string {
	return sender + "_" + room
}
