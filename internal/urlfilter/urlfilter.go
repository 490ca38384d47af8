// Package urlfilter implements the URL allow/block policy every
// outbound dereference passes through (§4.2).
package urlfilter

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/miekg/dns"
)

// Filter enforces an allow/block host list and a scheme policy.
type Filter struct {
	allowed      map[string]bool
	blocked      map[string]bool
	requireHTTPS bool
}

func New(allowedHosts, blockedHosts []string, requireHTTPS bool) *Filter {
	f := &Filter{
		allowed:      make(map[string]bool, len(allowedHosts)),
		blocked:      make(map[string]bool, len(blockedHosts)),
		requireHTTPS: requireHTTPS,
	}
	for _, h := range allowedHosts {
		f.allowed[strings.ToLower(h)] = true
	}
	for _, h := range blockedHosts {
		f.blocked[strings.ToLower(h)] = true
	}
	return f
}

// Allowed reports whether raw is permitted to be dereferenced:
// syntactically valid, https (unless explicitly relaxed), not on the
// block list, and on the allow list when one is configured.
func (f *Filter) Allowed(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("urlfilter: %q is not a valid URL: %w", raw, err)
	}
	if u.Scheme != "https" && (!allowsHTTP(f) || u.Scheme != "http") {
		return fmt.Errorf("urlfilter: scheme %q not permitted for %q", u.Scheme, raw)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("urlfilter: %q has no host", raw)
	}
	if f.blocked[host] {
		return fmt.Errorf("urlfilter: host %q is blocked", host)
	}
	if len(f.allowed) > 0 && !f.allowed[host] {
		return fmt.Errorf("urlfilter: host %q is not on the allow list", host)
	}
	return nil
}

func allowsHTTP(f *Filter) bool { return !f.requireHTTPS }

// IsBlockedHost reports whether host (a bare domain, no scheme) is on
// the block list, used by the announce recipient-set filter (§4.5) and
// instance-liveness classification independent of a full URL check.
func (f *Filter) IsBlockedHost(host string) bool {
	return f.blocked[strings.ToLower(host)]
}

// HostResolvable reports whether host has at least one A or AAAA
// record, queried directly against the system's configured resolvers
// rather than going through net.LookupHost. Used as a WebFinger
// sanity-check (§4.2) before spending a round trip on a handle whose
// host doesn't exist at all; resolver misconfiguration or lookup
// failure is treated as "can't tell", not "blocked" — this check only
// ever adds a fast rejection, never a false negative on its own.
func (f *Filter) HostResolvable(ctx context.Context, host string) bool {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return true
	}

	c := new(dns.Client)
	server := conf.Servers[0] + ":" + conf.Port
	fqdn := dns.Fqdn(host)

	answered := false
	for _, qtype := range [...]uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(fqdn, qtype)
		r, _, err := c.ExchangeContext(ctx, m, server)
		if err != nil || r == nil || (r.Rcode != dns.RcodeSuccess && r.Rcode != dns.RcodeNameError) {
			continue
		}
		answered = true
		if r.Rcode == dns.RcodeSuccess && len(r.Answer) > 0 {
			return true
		}
	}
	return !answered
}
