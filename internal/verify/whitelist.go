package verify

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/core"
	"github.com/calder/phishscan/internal/utils"
)

const (
	authBoost    = 0.03
	maxWhitelist = 0.99
)

// localDomainConfidence is the trust assigned to operator-configured
// domains, below the built-in providers but above the safe threshold.
const localDomainConfidence = 0.95

// Whitelist vouches for senders from a fixed table of trusted addresses
// and domains, plus any domains the operator configured. Authentication
// headers raise the base confidence slightly.
type Whitelist struct {
	logger       *zap.Logger
	localDomains []string
}

// NewWhitelist creates a new whitelist oracle.
func NewWhitelist(logger *zap.Logger) *Whitelist {
	return &Whitelist{logger: logger}
}

// NewWhitelistWithDomains creates a whitelist oracle that also trusts
// the given operator-configured domains.
func NewWhitelistWithDomains(logger *zap.Logger, domains []string) *Whitelist {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	if len(normalized) > 0 {
		logger.Info("Configured local trusted domains", zap.Strings("domains", normalized))
	}
	return &Whitelist{logger: logger, localDomains: normalized}
}

// Check looks the sender up in the trust tables.
func (w *Whitelist) Check(facts *core.EmailFacts) core.WhitelistResult {
	if facts == nil {
		return core.WhitelistResult{}
	}
	sender := strings.ToLower(facts.SenderAddress)

	for addr, trust := range trustedEmails {
		if strings.Contains(sender, addr) {
			return core.WhitelistResult{
				IsWhitelisted: true,
				Provider:      trust.name,
				Confidence:    trust.confidence,
				Reasons:       []string{fmt.Sprintf("Matched trusted email: %s", addr)},
			}
		}
	}

	senderDomain := facts.SenderDomain
	if senderDomain == "" {
		senderDomain = utils.DomainFromEmail(sender)
	}
	if senderDomain == "" {
		return core.WhitelistResult{}
	}

	for domain, trust := range trustedDomains {
		if !utils.DomainMatches(senderDomain, domain) {
			continue
		}
		reasons := []string{fmt.Sprintf("Sender domain (%s) matches trusted domain: %s", senderDomain, domain)}
		confidence := trust.confidence

		spf, dkim, dmarc := authenticationResults(facts.Headers)
		if dkim {
			reasons = append(reasons, "DKIM authentication passed")
			confidence = min(confidence+authBoost, maxWhitelist)
		}
		if spf {
			reasons = append(reasons, "SPF check passed")
			confidence = min(confidence+authBoost, maxWhitelist)
		}
		if dmarc {
			reasons = append(reasons, "DMARC verification passed")
			confidence = min(confidence+authBoost, maxWhitelist)
		}

		w.logger.Debug("Whitelist match",
			zap.String("sender_domain", senderDomain),
			zap.String("provider", trust.name),
			zap.Float64("confidence", confidence))

		return core.WhitelistResult{
			IsWhitelisted: true,
			Provider:      trust.name,
			Confidence:    confidence,
			Reasons:       reasons,
		}
	}

	for _, domain := range w.localDomains {
		if !utils.DomainMatches(senderDomain, domain) {
			continue
		}
		w.logger.Debug("Local whitelist match",
			zap.String("sender_domain", senderDomain),
			zap.String("domain", domain))
		return core.WhitelistResult{
			IsWhitelisted: true,
			Provider:      "local",
			Confidence:    localDomainConfidence,
			Reasons:       []string{fmt.Sprintf("Sender domain (%s) matches configured trusted domain: %s", senderDomain, domain)},
		}
	}

	return core.WhitelistResult{}
}

// authenticationResults reads SPF/DKIM/DMARC outcomes from the
// Authentication-Results header.
func authenticationResults(headers map[string]string) (spf, dkim, dmarc bool) {
	var auth string
	for name, value := range headers {
		if strings.EqualFold(name, "Authentication-Results") {
			auth = strings.ToLower(value)
			break
		}
	}
	if auth == "" {
		return false, false, false
	}
	return strings.Contains(auth, "spf=pass"),
		strings.Contains(auth, "dkim=pass"),
		strings.Contains(auth, "dmarc=pass")
}
