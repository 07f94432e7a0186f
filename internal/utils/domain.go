package utils

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

var emailDomainRe = regexp.MustCompile(`@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)

// DomainFromEmail extracts the lowercased domain from an address, which
// may be a bare address or a display-name form like "Alice <a@b.com>".
func DomainFromEmail(addr string) string {
	m := emailDomainRe.FindStringSubmatch(strings.ToLower(addr))
	if m == nil {
		return ""
	}
	return strings.TrimSuffix(m[1], ".")
}

// LocalPartFromEmail extracts the lowercased local part of an address.
func LocalPartFromEmail(addr string) string {
	addr = strings.ToLower(addr)
	if start := strings.LastIndex(addr, "<"); start >= 0 {
		addr = strings.TrimSuffix(addr[start+1:], ">")
	}
	at := strings.Index(addr, "@")
	if at <= 0 {
		return ""
	}
	return addr[:at]
}

// HostOf returns the lowercased ASCII host of a URL, without the port.
// Internationalized hostnames are converted to punycode so lookalike
// checks compare in one alphabet.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	return host
}

// RegisteredDomain returns the eTLD+1 for a host ("mail.example.co.uk"
// yields "example.co.uk"). The host itself is returned when the public
// suffix list cannot split it.
func RegisteredDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if host == "" {
		return ""
	}
	registered, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registered
}

// SplitHost splits a host into its subdomain and registered-domain parts.
// The subdomain is empty for a bare registered domain.
func SplitHost(host string) (subdomain, registered string) {
	registered = RegisteredDomain(host)
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if registered == "" || host == registered {
		return "", registered
	}
	return strings.TrimSuffix(host, "."+registered), registered
}

// DomainMatches reports whether host equals domain or is a subdomain
// of it.
func DomainMatches(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
