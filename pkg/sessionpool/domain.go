package sessionpool

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// DomainGuard decides whether a navigation target is permitted.
//
// Plain entries use containment, not equality: the entry "example.com" admits
// "sub.example.com", "example.com:8080" and also "example.com.evil.net".
// Entries containing glob metacharacters (for example "*.example.com") are
// matched against the whole hostname instead, for callers that need a
// tighter rule.
type DomainGuard struct {
	entries []domainEntry
}

type domainEntry struct {
	raw     string
	pattern glob.Glob
}

// NewDomainGuard compiles an allow-list. An empty list allows everything.
func NewDomainGuard(allowList []string) (*DomainGuard, error) {
	g := &DomainGuard{}
	for _, raw := range allowList {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		entry := domainEntry{raw: raw}
		if isGlob(raw) {
			pattern, err := glob.Compile(raw, '.')
			if err != nil {
				return nil, fmt.Errorf("invalid domain pattern %q: %w", raw, err)
			}
			entry.pattern = pattern
		}
		g.entries = append(g.entries, entry)
	}
	return g, nil
}

// IsAllowed reports whether targetURL's host passes the allow-list.
func (g *DomainGuard) IsAllowed(targetURL string) bool {
	if g == nil || len(g.entries) == 0 {
		return true
	}

	host, hostname := extractHost(targetURL)
	if host == "" {
		return false
	}

	for _, e := range g.entries {
		if e.pattern != nil {
			if e.pattern.Match(hostname) {
				return true
			}
			continue
		}
		if strings.Contains(host, e.raw) {
			return true
		}
	}
	return false
}

// Check returns an ErrDomainRejected error when targetURL is not allowed.
func (g *DomainGuard) Check(targetURL string) error {
	if g.IsAllowed(targetURL) {
		return nil
	}
	host, _ := extractHost(targetURL)
	return newSessionError("navigate", "", ErrDomainRejected,
		fmt.Errorf("domain %q not in allowed list: %v", host, g.Entries()))
}

// Entries returns the normalized allow-list.
func (g *DomainGuard) Entries() []string {
	if g == nil {
		return nil
	}
	out := make([]string, len(g.entries))
	for i, e := range g.entries {
		out[i] = e.raw
	}
	return out
}

// IsAllowed is the stateless form of DomainGuard.IsAllowed. Malformed glob
// entries fall back to containment.
func IsAllowed(targetURL string, allowList []string) bool {
	g, err := NewDomainGuard(allowList)
	if err != nil {
		g = &DomainGuard{}
		for _, raw := range allowList {
			raw = strings.ToLower(strings.TrimSpace(raw))
			if raw != "" {
				g.entries = append(g.entries, domainEntry{raw: raw})
			}
		}
	}
	return g.IsAllowed(targetURL)
}

// extractHost returns the lowercased host (with port) and hostname of rawURL.
func extractHost(rawURL string) (string, string) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", ""
	}
	return strings.ToLower(u.Host), strings.ToLower(u.Hostname())
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
