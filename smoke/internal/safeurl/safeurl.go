// Package safeurl guards smoke targets that arrive from remote callers (HTTP
// API, MCP). A shared runner must not be pointed at the host's own network.
package safeurl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

var (
	// ErrInvalid is returned for URLs that do not parse or have no host.
	ErrInvalid = errors.New("safeurl: invalid url")
	// ErrUnsafeScheme is returned for anything but http and https.
	ErrUnsafeScheme = errors.New("safeurl: only http and https targets are allowed")
	// ErrPrivate is returned when the target is or resolves to a private,
	// loopback or link-local address.
	ErrPrivate = errors.New("safeurl: target is a private or loopback address")
)

// Resolver looks up host addresses. net.DefaultResolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Validate checks scheme and host of rawURL and rejects private targets. A
// hostname that does not resolve is let through: the run itself will report
// the navigation failure.
func Validate(ctx context.Context, rawURL string, r Resolver) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: no host", ErrInvalid)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isPrivate(addr) {
			return ErrPrivate
		}
		return nil
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return ErrPrivate
	}

	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if addr, err := netip.ParseAddr(a); err == nil && isPrivate(addr) {
			return ErrPrivate
		}
	}
	return nil
}

// Rejected reports whether err is one of the Validate rejections.
func Rejected(err error) bool {
	return errors.Is(err, ErrInvalid) || errors.Is(err, ErrUnsafeScheme) || errors.Is(err, ErrPrivate)
}

func isPrivate(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}
