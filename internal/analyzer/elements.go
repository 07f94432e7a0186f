package analyzer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calder/phishscan/internal/core"
	"github.com/calder/phishscan/internal/utils"
)

const (
	dnsWorkers            = 5
	verifiedConfidenceMin = 0.9
)

// scanKeywords are the body phrases worth surfacing as findings. All
// keyword findings are low severity.
var scanKeywords = []string{
	"account", "money", "log", "replica", "click", "verify", "bank",
	"urgent", "password", "security", "alert", "suspend", "confirm",
	"immediately", "unauthorized", "access", "information", "paypal",
	"limited", "update", "credit", "details", "card", "login", "link",
	"require",
}

// Extractor produces the ordered suspicious-element list for an email.
// Identical facts always yield an identical list: URLs are processed in
// input order with a fixed check order, cross-checks follow, and the
// body keyword scan comes last.
type Extractor struct {
	dns    core.DNSChecker
	urls   core.URLReputationOracle
	logger *zap.Logger
}

// NewExtractor creates a new element extractor.
func NewExtractor(dns core.DNSChecker, urls core.URLReputationOracle, logger *zap.Logger) *Extractor {
	return &Extractor{dns: dns, urls: urls, logger: logger}
}

// Extract analyzes the email and returns every suspicious element found.
func (e *Extractor) Extract(ctx context.Context, facts *core.EmailFacts) []core.SuspiciousElement {
	elements := []core.SuspiciousElement{}
	if facts == nil {
		return elements
	}

	urls := facts.URLs
	if len(urls) == 0 && facts.HTMLBody != "" {
		urls = extractURLsFromHTML(facts.HTMLBody)
	}

	domainExists := e.resolveDomains(ctx, urls)

	for _, rawURL := range urls {
		elements = append(elements, e.checkOne(ctx, rawURL, domainExists)...)
	}

	elements = append(elements, e.crossCheckSender(facts, urls)...)
	elements = append(elements, scanBodyKeywords(facts.Subject+" "+facts.Body)...)

	e.logger.Debug("Element extraction complete",
		zap.Int("urls", len(urls)),
		zap.Int("elements", len(elements)))

	return elements
}

// resolveDomains performs the DNS existence lookups for every distinct
// registered domain, at most dnsWorkers at a time.
func (e *Extractor) resolveDomains(ctx context.Context, urls []string) map[string]bool {
	domains := make([]string, 0, len(urls))
	seen := make(map[string]bool)
	for _, rawURL := range urls {
		domain := utils.RegisteredDomain(utils.HostOf(rawURL))
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true
		domains = append(domains, domain)
	}

	exists := make(map[string]bool, len(domains))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dnsWorkers)
	for _, domain := range domains {
		domain := domain
		g.Go(func() error {
			found, confirmed := e.dns.Exists(gctx, domain)
			mu.Lock()
			// Unconfirmed lookups count as existing so resolver trouble
			// never manufactures a red flag.
			exists[domain] = found || !confirmed
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return exists
}

// checkOne runs the fixed per-URL check sequence.
func (e *Extractor) checkOne(ctx context.Context, rawURL string, domainExists map[string]bool) []core.SuspiciousElement {
	var found []core.SuspiciousElement

	host := utils.HostOf(rawURL)
	if host == "" {
		return found
	}
	subdomain, domain := utils.SplitHost(host)

	verification := e.urls.Verify(ctx, rawURL)
	verified := verification.IsLegitimate && verification.Confidence >= verifiedConfidenceMin
	shortener := isTrustedShortener(host)

	if verified {
		// Reputation-verified URLs only surface the oracle's own
		// warnings, and quietly.
		for _, warning := range verification.Warnings {
			found = append(found, core.SuspiciousElement{
				Kind:     core.ElementURLWarning,
				Value:    rawURL,
				Reason:   fmt.Sprintf("Verified legitimate but: %s", warning),
				Severity: core.SeverityLow,
			})
		}
		return found
	}

	if !verification.IsLegitimate && !shortener {
		if reason, bad := checkDomain(domain, subdomain); bad {
			found = append(found, core.SuspiciousElement{
				Kind:     core.ElementDomain,
				Value:    host,
				Reason:   reason,
				Severity: core.SeverityMedium,
			})
		}
	}

	if reason, bad := checkURL(rawURL); bad && !verification.IsLegitimate {
		severity := core.SeverityMedium
		if strings.Contains(reason, "IP address") || strings.Contains(reason, "credentials") {
			severity = core.SeverityHigh
		}
		found = append(found, core.SuspiciousElement{
			Kind:     core.ElementURL,
			Value:    rawURL,
			Reason:   reason,
			Severity: severity,
		})
	}

	if reason, bad := checkPath(rawURL); bad && !verification.IsLegitimate && !isKnownLegitimateDomain(domain) {
		found = append(found, core.SuspiciousElement{
			Kind:     core.ElementURLPath,
			Value:    rawURL,
			Reason:   reason,
			Severity: core.SeverityLow,
		})
	}

	if !verification.IsLegitimate {
		for _, warning := range verification.Warnings {
			found = append(found, core.SuspiciousElement{
				Kind:     core.ElementVerificationWarning,
				Value:    rawURL,
				Reason:   warning,
				Severity: core.SeverityMedium,
			})
		}
	}

	if !domainExists[domain] && !isKnownLegitimateDomain(domain) && !shortener && !verification.IsLegitimate {
		found = append(found, core.SuspiciousElement{
			Kind:     core.ElementNonexistentDomain,
			Value:    domain,
			Reason:   "Domain doesn't have proper DNS records",
			Severity: core.SeverityHigh,
		})
	}

	return found
}

// crossCheckSender compares every link domain against the sender's brand.
func (e *Extractor) crossCheckSender(facts *core.EmailFacts, urls []string) []core.SuspiciousElement {
	var found []core.SuspiciousElement

	senderDomain := facts.SenderDomain
	if senderDomain == "" {
		senderDomain = utils.DomainFromEmail(facts.SenderAddress)
	}
	if senderDomain == "" {
		return found
	}

	for _, rawURL := range urls {
		urlDomain := utils.RegisteredDomain(utils.HostOf(rawURL))
		if urlDomain == "" || isKnownLegitimateDomain(urlDomain) || isTrustedShortener(urlDomain) {
			continue
		}
		if isImpersonatingBrand(senderDomain, urlDomain) {
			found = append(found, core.SuspiciousElement{
				Kind:     core.ElementDomainMismatch,
				Value:    fmt.Sprintf("Sender: %s, Link: %s", senderDomain, urlDomain),
				Reason:   fmt.Sprintf("Potential brand impersonation: Email from %s contains links to %s", senderDomain, urlDomain),
				Severity: core.SeverityHigh,
			})
		}
	}

	return found
}

// scanBodyKeywords surfaces pressure and credential-harvesting language.
func scanBodyKeywords(text string) []core.SuspiciousElement {
	var found []core.SuspiciousElement
	lower := strings.ToLower(text)

	for _, keyword := range scanKeywords {
		if strings.Contains(lower, keyword) {
			found = append(found, core.SuspiciousElement{
				Kind:     core.ElementKeyword,
				Value:    keyword,
				Reason:   "Suspicious keyword or phrase",
				Severity: core.SeverityLow,
			})
		}
	}

	return found
}
