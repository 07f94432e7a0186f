package analyzer

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/calder/phishscan/internal/utils"
)

const (
	maxURLLength      = 250
	maxDotCount       = 5
	lookalikeDistance = 1
)

// suspiciousDomainKeywords appear in domains forged to look official.
var suspiciousDomainKeywords = []string{
	"secure", "login", "verify", "account", "update", "confirm", "banking",
	"paypal", "amazon", "apple", "microsoft", "google", "facebook", "ebay",
	"netflix", "security", "support", "service", "signin", "authorize",
	"wallet", "password", "recover", "help", "access", "customer", "notification",
}

var commonTLDs = map[string]bool{
	"com": true, "org": true, "net": true, "edu": true, "gov": true, "mil": true,
	"io": true, "co": true, "info": true, "biz": true, "us": true, "uk": true,
	"ca": true, "au": true, "de": true, "jp": true, "fr": true, "it": true,
	"es": true, "nl": true, "ru": true, "cn": true,
}

// majorServices maps brand names to their genuine domains.
var majorServices = map[string][]string{
	"paypal":     {"paypal.com", "paypal.co.uk"},
	"microsoft":  {"microsoft.com", "office.com", "live.com", "outlook.com", "microsoftonline.com"},
	"apple":      {"apple.com", "icloud.com"},
	"amazon":     {"amazon.com", "amazon.co.uk", "amazon.ca", "amazon.de", "amazon.fr", "amazon.es"},
	"google":     {"google.com", "gmail.com", "youtube.com"},
	"facebook":   {"facebook.com", "fb.com", "messenger.com", "instagram.com"},
	"netflix":    {"netflix.com"},
	"bank":       {"chase.com", "bankofamerica.com", "wellsfargo.com", "hsbc.com", "citibank.com", "barclays.co.uk"},
	"aliexpress": {"aliexpress.com", "alibaba.com", "alipay.com"},
	"walmart":    {"walmart.com", "walmart.ca"},
	"ebay":       {"ebay.com", "ebay.co.uk", "ebay.ca", "ebay.de"},
	"target":     {"target.com"},
}

// legitimateSubdomains are official subdomains of the major services.
var legitimateSubdomains = map[string][]string{
	"amazon.com":     {"smile", "www", "pay", "aws", "services"},
	"google.com":     {"www", "mail", "drive", "docs", "accounts", "myaccount"},
	"microsoft.com":  {"www", "login", "account", "azure", "support", "docs", "office"},
	"apple.com":      {"www", "id", "support", "icloud", "appleid"},
	"paypal.com":     {"www", "account"},
	"facebook.com":   {"www", "m", "business"},
	"aliexpress.com": {"login", "trade", "message", "www", "es", "sale"},
}

var trustedShorteners = []string{
	"bit.ly", "goo.gl", "t.co", "tinyurl.com", "ow.ly", "linkedin.com/sharing",
	"youtu.be", "amzn.to", "fb.me", "lnkd.in",
}

var suspiciousPathWords = []string{"login", "signin", "verify", "account", "password", "secure", "update"}

var suspiciousQueryParams = []string{"token=", "auth=", "session=", "redirect="}

var redirectPatterns = []string{"/redirect/", "url=", "redirect=", "target=", "link=", "goto="}

var (
	ipURLRe  = regexp.MustCompile(`^https?://\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)
	portRe   = regexp.MustCompile(`:(\d+)`)
	hrefRe   = regexp.MustCompile(`href=['"]?([^'" >]+)`)
)

// isKnownLegitimateDomain reports whether domain belongs to a major service.
func isKnownLegitimateDomain(domain string) bool {
	for _, domains := range majorServices {
		for _, d := range domains {
			if utils.DomainMatches(domain, d) {
				return true
			}
		}
	}
	return false
}

func isTrustedShortener(fullDomain string) bool {
	for _, shortener := range trustedShorteners {
		if strings.Contains(fullDomain, shortener) {
			return true
		}
	}
	return false
}

// checkDomain flags domains with unusual TLDs, forged keywords, or brand
// lookalike labels.
func checkDomain(domain, subdomain string) (string, bool) {
	labels := strings.Split(domain, ".")
	tld := labels[len(labels)-1]
	if !commonTLDs[tld] {
		return fmt.Sprintf("Unusual top-level domain (.%s)", tld), true
	}

	if isKnownLegitimateDomain(domain) {
		if subdomain == "" {
			return "", false
		}
		for base, subs := range legitimateSubdomains {
			if utils.DomainMatches(domain, base) {
				for _, s := range subs {
					if subdomain == s {
						return "", false
					}
				}
			}
		}
	}

	label := strings.ToLower(labels[0])
	for _, keyword := range suspiciousDomainKeywords {
		if strings.Contains(label, keyword) {
			if strings.Contains(label, "-") || strings.Contains(label, "_") {
				return fmt.Sprintf("Suspicious domain pattern using '%s'", keyword), true
			}
		}
	}

	for service, domains := range majorServices {
		genuine := false
		for _, d := range domains {
			if domain == d {
				genuine = true
				break
			}
		}
		if genuine {
			continue
		}
		if label != service && looksLikeBrand(label, service) {
			if strings.HasPrefix(label, service) || strings.HasSuffix(label, service) ||
				fuzzy.LevenshteinDistance(label, service) <= lookalikeDistance {
				return fmt.Sprintf("Possible lookalike domain for %s", service), true
			}
		}
	}

	if subdomain != "" {
		lowerSub := strings.ToLower(subdomain)
		for _, keyword := range suspiciousDomainKeywords {
			if strings.Contains(lowerSub, keyword) {
				return fmt.Sprintf("Suspicious subdomain using '%s'", keyword), true
			}
		}
		for service, domains := range majorServices {
			if strings.Contains(lowerSub, service) && !containsDomain(domains, domain) {
				return fmt.Sprintf("Suspicious use of '%s' in subdomain", service), true
			}
		}
	}

	return "", false
}

// looksLikeBrand reports whether label resembles a brand name closely
// enough to be a forgery candidate.
func looksLikeBrand(label, brand string) bool {
	if strings.Contains(label, brand) {
		return true
	}
	return fuzzy.LevenshteinDistance(label, brand) <= lookalikeDistance
}

func containsDomain(domains []string, domain string) bool {
	for _, d := range domains {
		if domain == d {
			return true
		}
	}
	return false
}

// checkURL flags URL-level obfuscation tricks.
func checkURL(rawURL string) (string, bool) {
	if ipURLRe.MatchString(rawURL) {
		return "URL contains IP address instead of domain name", true
	}

	if strings.Contains(rawURL, "%") {
		decoded, err := url.QueryUnescape(rawURL)
		if err == nil && decoded != rawURL {
			if strings.Contains(decoded, "http") && !strings.Contains(strings.ToLower(rawURL), "http") {
				return "URL contains obfuscated protocol", true
			}
			if strings.Contains(decoded, "@") && !strings.Contains(rawURL, "@") {
				return "URL contains obfuscated credentials", true
			}
		}
	}

	if strings.Count(rawURL, ".") > maxDotCount {
		return "URL contains an unusual number of subdomains", true
	}

	if strings.Contains(rawURL, "@") {
		return "URL contains embedded credentials", true
	}

	if m := portRe.FindStringSubmatch(rawURL); m != nil {
		if port, err := strconv.Atoi(m[1]); err == nil && port != 80 && port != 443 {
			return fmt.Sprintf("URL uses unusual port number (%d)", port), true
		}
	}

	lower := strings.ToLower(rawURL)
	for _, pattern := range redirectPatterns {
		if strings.Contains(lower, pattern) {
			host := utils.HostOf(rawURL)
			if !isKnownLegitimateDomain(utils.RegisteredDomain(host)) {
				return "URL appears to contain a redirect", true
			}
		}
	}

	if len(rawURL) > maxURLLength {
		return "Suspiciously long URL", true
	}

	return "", false
}

// checkPath flags credential-harvesting path and query shapes.
func checkPath(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	path := strings.ToLower(parsed.Path)
	query := strings.ToLower(parsed.RawQuery)

	for _, word := range suspiciousPathWords {
		if strings.Contains(path, word) {
			return fmt.Sprintf("URL path contains '%s'", word), true
		}
	}

	if strings.HasSuffix(path, ".php") || strings.HasSuffix(path, ".asp") {
		for _, word := range suspiciousPathWords {
			if strings.Contains(path, word+".") {
				return fmt.Sprintf("Suspicious file name pattern: '%s' with extension", word), true
			}
		}
	}

	for _, param := range suspiciousQueryParams {
		if strings.Contains(query, param) {
			return "URL contains suspicious query parameters", true
		}
	}

	return "", false
}

// brandFor resolves the brand a sender domain belongs to, if any.
func brandFor(senderDomain string) string {
	for brand, domains := range majorServices {
		for _, d := range domains {
			if utils.DomainMatches(senderDomain, d) {
				return brand
			}
		}
	}
	return ""
}

// isImpersonatingBrand reports whether a link domain trades on the
// sender's brand without belonging to it.
func isImpersonatingBrand(senderDomain, urlDomain string) bool {
	brand := brandFor(senderDomain)
	if brand == "" {
		return false
	}
	for _, d := range majorServices[brand] {
		if utils.DomainMatches(urlDomain, d) {
			return false
		}
	}
	label := strings.Split(urlDomain, ".")[0]
	return strings.Contains(urlDomain, brand) || fuzzy.LevenshteinDistance(label, brand) <= lookalikeDistance
}

// extractURLsFromHTML pulls href targets out of raw HTML.
func extractURLsFromHTML(html string) []string {
	var urls []string
	for _, m := range hrefRe.FindAllStringSubmatch(html, -1) {
		if strings.HasPrefix(m[1], "http") {
			urls = append(urls, m[1])
		}
	}
	return urls
}
