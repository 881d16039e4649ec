package utils

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeEntry trims surrounding whitespace from a user-typed block-list
// entry. Case is preserved: entries are case-sensitive keys.
func NormalizeEntry(s string) string {
	return strings.TrimSpace(s)
}

// HostOf returns the lowercased host of rawURL without port, or "" when the
// URL has no host.
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}

// SiteOf returns the registrable domain (eTLD+1) for the host of rawURL.
// Hosts that have no registrable domain (IPs, "localhost", bare suffixes)
// are returned unchanged.
func SiteOf(rawURL string) string {
	host := HostOf(rawURL)
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}
