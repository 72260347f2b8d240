package dns

import (
	"strings"
)

// SplitHostname splits an FQDN into subdomain and domain parts.
// e.g. "app.example.com" → ("app", "example.com")
// e.g. "sub.app.example.com" → ("sub.app", "example.com") when zone is "example.com"
//
// When zone is empty or does not contain fqdn, the first label is split off.
func SplitHostname(fqdn, zone string) (hostname, domain string) {
	fqdn = strings.TrimSuffix(fqdn, ".")
	zone = strings.TrimSuffix(zone, ".")
	if zone != "" && strings.HasSuffix(fqdn, "."+zone) {
		return strings.TrimSuffix(fqdn, "."+zone), zone
	}
	parts := strings.SplitN(fqdn, ".", 2)
	if len(parts) < 2 {
		return fqdn, ""
	}
	return parts[0], parts[1]
}

// SameName reports whether two DNS names are equal, ignoring case and a trailing dot.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}
