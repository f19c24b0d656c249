// Package ssrf validates outbound target URLs so the shortener cannot be used
// as a redirector into private or reserved networks.
package ssrf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrInvalidURL is returned for unparsable URLs, schemes other than
	// http/https and URLs without a host.
	ErrInvalidURL = errors.New("invalid url")

	// ErrForbiddenTarget is returned when the host resolves to a non-public
	// address or cannot be resolved at all.
	ErrForbiddenTarget = errors.New("url resolves to private or reserved address")
)

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Guard checks candidate URLs before they are stored.
type Guard struct {
	resolver Resolver
	timeout  time.Duration
}

// DefaultLookupTimeout bounds a single hostname resolution.
const DefaultLookupTimeout = 3 * time.Second

// NewGuard returns a Guard using r for name resolution. A nil r means
// net.DefaultResolver.
func NewGuard(r Resolver) *Guard {
	if r == nil {
		r = net.DefaultResolver
	}
	return &Guard{resolver: r, timeout: DefaultLookupTimeout}
}

// Validate parses raw and accepts it only if every address its host resolves
// to is public. Resolution failures are treated as forbidden.
func (g *Guard) Validate(ctx context.Context, raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q is not allowed", ErrInvalidURL, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if !IsPublic(addr) {
			return nil, fmt.Errorf("%w: %s", ErrForbiddenTarget, addr)
		}
		return u, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	addrs, err := g.resolver.LookupNetIP(lookupCtx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", ErrForbiddenTarget, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s has no addresses", ErrForbiddenTarget, host)
	}

	for _, addr := range addrs {
		if !IsPublic(addr) {
			return nil, fmt.Errorf("%w: %s resolves to %s", ErrForbiddenTarget, host, addr)
		}
	}

	return u, nil
}
