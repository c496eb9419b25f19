package pattern

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeDomain standardizes a raw domain input to a bare hostname:
// scheme stripped, lowercased, trailing slashes and paths removed.
// Invalid input (empty, malformed, no host) is rejected with
// ErrInvalidDomain before any pipeline resource is used.
func NormalizeDomain(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidDomain)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || strings.ContainsAny(host, " ") {
		return "", fmt.Errorf("%w: no host in %q", ErrInvalidDomain, raw)
	}
	if !strings.Contains(host, ".") && host != "localhost" {
		return "", fmt.Errorf("%w: %q is not a hostname", ErrInvalidDomain, raw)
	}
	return host, nil
}

// BaseURL returns the https URL used to fetch a normalized domain.
func BaseURL(domain string) string {
	return "https://" + domain + "/"
}
