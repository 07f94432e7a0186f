package verify

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/cache"
	"github.com/calder/phishscan/internal/core"
	"github.com/calder/phishscan/internal/utils"
)

const (
	officialDomainConfidence = 0.95
	shortenerConfidence      = 0.8
	verifierCacheKeyLimit    = 200
)

// servicePattern describes the official URL shape of one major service.
type servicePattern struct {
	domains    []string
	subdomains []string
	paths      []string
}

var officialDomainPatterns = map[string]servicePattern{
	"google": {
		domains:    []string{"google.com", "gmail.com", "youtube.com", "googledrive.com", "googleusercontent.com"},
		subdomains: []string{"accounts", "mail", "drive", "docs", "calendar", "photos", "myaccount", "support"},
		paths:      []string{"/accounts/", "/drive/", "/docs/", "/calendar/", "/photos/"},
	},
	"microsoft": {
		domains:    []string{"microsoft.com", "office.com", "live.com", "outlook.com", "microsoftonline.com", "office365.com"},
		subdomains: []string{"login", "account", "portal", "www", "outlook", "teams"},
		paths:      []string{"/login/", "/account/", "/portal/", "/teams/"},
	},
	"apple": {
		domains:    []string{"apple.com", "icloud.com", "me.com", "mac.com"},
		subdomains: []string{"id", "www", "support", "appleid", "icloud"},
		paths:      []string{"/id/", "/support/", "/icloud/"},
	},
	"paypal": {
		domains:    []string{"paypal.com", "paypal.co.uk", "paypal.ca", "paypal.de", "paypal.fr"},
		subdomains: []string{"www", "account", "business"},
		paths:      []string{"/signin/", "/myaccount/", "/business/"},
	},
	"amazon": {
		domains:    []string{"amazon.com", "amazon.co.uk", "amazon.ca", "amazon.de", "amazon.fr", "amazon.es", "amazon.it"},
		subdomains: []string{"www", "smile", "aws", "signin", "account"},
		paths:      []string{"/signin/", "/account/", "/gp/", "/dp/"},
	},
	"facebook": {
		domains:    []string{"facebook.com", "fb.com", "messenger.com", "instagram.com"},
		subdomains: []string{"www", "m", "business", "developers"},
		paths:      []string{"/login/", "/business/", "/developers/"},
	},
	"linkedin": {
		domains:    []string{"linkedin.com"},
		subdomains: []string{"www", "business", "learning"},
		paths:      []string{"/comm/", "/pulse/", "/learning/", "/business/"},
	},
	"banking": {
		domains:    []string{"chase.com", "bankofamerica.com", "wellsfargo.com", "citibank.com", "hsbc.com"},
		subdomains: []string{"www", "online", "secure", "mobile"},
		paths:      []string{"/online/", "/secure/", "/login/"},
	},
}

// legitimateShorteners maps shortener domains to the service behind them.
var legitimateShorteners = map[string]string{
	"bit.ly":      "Bitly",
	"tinyurl.com": "TinyURL",
	"t.co":        "Twitter",
	"goo.gl":      "Google (deprecated)",
	"youtu.be":    "YouTube",
	"amzn.to":     "Amazon",
	"fb.me":       "Facebook",
	"lnkd.in":     "LinkedIn",
	"ow.ly":       "Hootsuite",
}

var suspiciousSubdomains = map[string]bool{
	"secure": true, "login": true, "verify": true,
	"update": true, "confirm": true, "account": true,
}

var suspiciousTLDs = map[string]bool{
	"tk": true, "ml": true, "ga": true, "cf": true, "click": true, "download": true,
}

var ipInURLRe = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)

// homographSubstitutions are the digit lookalikes used in forged domains.
var homographSubstitutions = map[string]string{
	"o": "0", "i": "1", "l": "1", "e": "3", "a": "4", "s": "5",
}

// URLVerifier checks URLs against the official shapes of major services
// and flags lookalike and obfuscation tricks. Results are cached.
type URLVerifier struct {
	cache  *cache.TTLCache[core.URLVerification]
	logger *zap.Logger
}

// NewURLVerifier creates a new URL verifier. Verification results live
// in an in-memory cache for cacheTTL, swept every cleanupFreq.
func NewURLVerifier(logger *zap.Logger, cacheTTL, cleanupFreq time.Duration) *URLVerifier {
	return &URLVerifier{
		cache:  cache.NewTTLCache[core.URLVerification](logger, cacheTTL, cleanupFreq),
		logger: logger,
	}
}

// Verify checks one URL. It never fails; unparseable URLs come back
// unverified with a warning.
func (v *URLVerifier) Verify(ctx context.Context, rawURL string) core.URLVerification {
	cacheKey := rawURL
	if len(cacheKey) > verifierCacheKeyLimit {
		cacheKey = cacheKey[:verifierCacheKeyLimit]
	}
	if cached, ok := v.cache.Get(cacheKey); ok {
		return cached
	}

	result := v.verify(rawURL)
	v.cache.Set(cacheKey, result)
	return result
}

func (v *URLVerifier) verify(rawURL string) core.URLVerification {
	var result core.URLVerification

	host := utils.HostOf(rawURL)
	if host == "" {
		result.Warnings = append(result.Warnings, "URL could not be parsed")
		return result
	}
	subdomain, domain := utils.SplitHost(host)

	parsed, _ := url.Parse(rawURL)
	path := ""
	if parsed != nil {
		path = strings.ToLower(parsed.Path)
	}

	for service, patterns := range officialDomainPatterns {
		if matchesServicePattern(domain, subdomain, path, patterns) {
			result.IsLegitimate = true
			result.Confidence = officialDomainConfidence
			result.Service = service
			result.Reasons = append(result.Reasons, fmt.Sprintf("Matches official %s domain pattern", service))
			break
		}
	}

	if !result.IsLegitimate {
		if name, ok := legitimateShorteners[domain]; ok {
			result.IsLegitimate = true
			result.Confidence = shortenerConfidence
			result.Service = fmt.Sprintf("%s (URL Shortener)", name)
			result.Reasons = append(result.Reasons, fmt.Sprintf("Legitimate URL shortener: %s", name))
			result.Warnings = append(result.Warnings, "URL shortener hides final destination")
		}
	}

	v.appendSuspiciousWarnings(rawURL, domain, subdomain, &result)

	return result
}

// matchesServicePattern reports whether domain/subdomain/path fit one
// service's official URL shape.
func matchesServicePattern(domain, subdomain, path string, patterns servicePattern) bool {
	for _, official := range patterns.domains {
		if domain != official {
			continue
		}
		if subdomain == "" {
			return true
		}
		for _, allowed := range patterns.subdomains {
			if subdomain == allowed {
				return true
			}
		}
		// Official domain with an unlisted subdomain still passes on a
		// known path prefix.
		for _, allowedPath := range patterns.paths {
			if path != "" && strings.HasPrefix(path, allowedPath) {
				return true
			}
		}
	}
	return false
}

func (v *URLVerifier) appendSuspiciousWarnings(rawURL, domain, subdomain string, result *core.URLVerification) {
	for service, patterns := range officialDomainPatterns {
		for _, official := range patterns.domains {
			if isLookalikeDomain(domain, official) {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Domain similar to %s official domain: %s", service, official))
			}
		}
	}

	if !result.IsLegitimate && subdomain != "" && suspiciousSubdomains[firstLabel(subdomain)] {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Suspicious subdomain: %s", subdomain))
	}

	if ipInURLRe.MatchString(rawURL) {
		result.Warnings = append(result.Warnings, "URL contains IP address instead of domain name")
	}

	if strings.Contains(rawURL, "%") {
		result.Warnings = append(result.Warnings, "URL contains encoded characters")
	}

	if strings.HasPrefix(domain, "xn--") || strings.Contains(domain, ".xn--") {
		result.Warnings = append(result.Warnings, "URL uses an internationalized (punycode) domain")
	}

	if labels := strings.Split(domain, "."); len(labels) > 0 {
		if suspiciousTLDs[labels[len(labels)-1]] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Suspicious top-level domain: .%s", labels[len(labels)-1]))
		}
	}
}

// isLookalikeDomain reports whether candidate forges official through
// digit substitution or a single-character edit of the registrable label.
func isLookalikeDomain(candidate, official string) bool {
	if candidate == official || candidate == "" {
		return false
	}

	candLabel, candTLD := splitLabelTLD(candidate)
	offLabel, offTLD := splitLabelTLD(official)
	if candTLD != offTLD || candLabel == offLabel {
		return false
	}

	for char, replacement := range homographSubstitutions {
		if strings.Contains(offLabel, char) {
			if candLabel == strings.ReplaceAll(offLabel, char, replacement) {
				return true
			}
		}
	}

	// One edit away, e.g. paypall.com.
	return fuzzy.LevenshteinDistance(candLabel, offLabel) == 1
}

func splitLabelTLD(domain string) (label, tld string) {
	i := strings.Index(domain, ".")
	if i < 0 {
		return domain, ""
	}
	return domain[:i], domain[i+1:]
}

func firstLabel(subdomain string) string {
	if i := strings.Index(subdomain, "."); i >= 0 {
		return subdomain[:i]
	}
	return subdomain
}

// Stop releases the verification cache's background resources.
func (v *URLVerifier) Stop() {
	v.cache.Stop()
}
