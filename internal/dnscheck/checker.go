package dnscheck

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/cache"
)

type lookupResult struct {
	exists    bool
	confirmed bool
}

// resolver is the subset of net.Resolver used by the checker.
type resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// Checker answers whether a domain exists in DNS. Lookups are cached and
// bounded by a per-query timeout; resolver trouble is reported as
// unconfirmed rather than as nonexistence.
type Checker struct {
	resolver resolver
	cache    *cache.TTLCache[lookupResult]
	logger   *zap.Logger
	timeout  time.Duration
}

// NewChecker creates a DNS checker using the system resolver.
func NewChecker(logger *zap.Logger, timeout, cacheTTL, cleanupFreq time.Duration) *Checker {
	return &Checker{
		resolver: net.DefaultResolver,
		cache:    cache.NewTTLCache[lookupResult](logger, cacheTTL, cleanupFreq),
		logger:   logger,
		timeout:  timeout,
	}
}

// Exists reports whether domain resolves. The second return is false when
// the answer could not be confirmed (resolver timeout or failure), in
// which case exists is optimistically true.
func (c *Checker) Exists(ctx context.Context, domain string) (exists, confirmed bool) {
	domain = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
	if domain == "" || !strings.Contains(domain, ".") {
		return false, true
	}

	if cached, ok := c.cache.Get(domain); ok {
		return cached.exists, cached.confirmed
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := c.lookup(ctx, domain)
	if result.confirmed {
		c.cache.Set(domain, result)
	}
	return result.exists, result.confirmed
}

func (c *Checker) lookup(ctx context.Context, domain string) lookupResult {
	// A domain that receives mail has MX records; fall back to address
	// records for domains that only serve web content.
	if mx, err := c.resolver.LookupMX(ctx, domain); err == nil && len(mx) > 0 {
		return lookupResult{exists: true, confirmed: true}
	}

	_, err := c.resolver.LookupHost(ctx, domain)
	if err == nil {
		return lookupResult{exists: true, confirmed: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return lookupResult{exists: false, confirmed: true}
		}
		if dnsErr.IsTimeout || dnsErr.IsTemporary {
			c.logger.Debug("DNS lookup inconclusive",
				zap.String("domain", domain),
				zap.Error(err))
			return lookupResult{exists: true, confirmed: false}
		}
	}

	c.logger.Debug("DNS lookup failed",
		zap.String("domain", domain),
		zap.Error(err))
	return lookupResult{exists: true, confirmed: false}
}

// Stop releases the lookup cache's background resources.
func (c *Checker) Stop() {
	c.cache.Stop()
}
