package httpclient

import (
	"net"
	"net/netip"
	"syscall"
)

// sanitizer is installed as a net.Dialer.Control hook to refuse dials
// to loopback, link-local, and other reserved ranges unless they are
// explicitly present in allow, and to refuse anything in block
// regardless of allow. This is the SSRF guard: a malicious actor
// record's inbox/shared_inbox pointing at 127.0.0.1 or a cloud
// metadata address must never be dialed.
type sanitizer struct {
	allow []netip.Prefix
	block []netip.Prefix
}

func (s *sanitizer) Sanitize(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// Not a literal IP (shouldn't happen post-DNS-resolution for
		// the dialer's Control hook, which always sees resolved IPs);
		// fail closed.
		return ErrReservedAddr
	}

	for _, p := range s.block {
		if p.Contains(addr) {
			return ErrReservedAddr
		}
	}

	if len(s.allow) > 0 {
		for _, p := range s.allow {
			if p.Contains(addr) {
				return nil
			}
		}
		return ErrReservedAddr
	}

	if isReservedOrPrivate(addr) {
		return ErrReservedAddr
	}
	return nil
}

func isReservedOrPrivate(addr netip.Addr) bool {
	return addr.IsLoopback() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsPrivate() ||
		addr.IsUnspecified() ||
		addr.IsMulticast()
}
