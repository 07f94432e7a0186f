package verify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/core"
	"github.com/calder/phishscan/internal/utils"
)

const (
	googleConfidence       = 0.95
	trustedConfidence      = 0.9
	trustedAllURLsBoost    = 0.98
	authFallbackConfidence = 0.8
)

// googleKeywords mark content that legitimate Google notifications use.
var googleKeywords = []string{
	"google account", "google drive", "google docs", "google calendar",
	"gmail", "google security", "account activity", "security alert",
	"google meet", "google classroom",
}

// Legitimacy verifies whether an email genuinely comes from a trusted
// service provider. It is independent of the statistical classifier and
// can override it.
type Legitimacy struct {
	urls   core.URLReputationOracle
	logger *zap.Logger
}

// NewLegitimacy creates a new legitimacy verifier.
func NewLegitimacy(urls core.URLReputationOracle, logger *zap.Logger) *Legitimacy {
	return &Legitimacy{urls: urls, logger: logger}
}

// Verify scores the sender's legitimacy.
func (v *Legitimacy) Verify(ctx context.Context, facts *core.EmailFacts) core.LegitimacyResult {
	if facts == nil {
		return core.LegitimacyResult{}
	}

	senderDomain := facts.SenderDomain
	if senderDomain == "" {
		senderDomain = utils.DomainFromEmail(facts.SenderAddress)
	}

	// Google mail is disproportionately misflagged; a matching domain or
	// a recognizable Google notification shape settles it immediately.
	if strings.Contains(senderDomain, "gmail.com") || strings.Contains(senderDomain, "google.com") {
		v.logger.Debug("Trusted Google domain", zap.String("sender_domain", senderDomain))
		return core.LegitimacyResult{
			IsLegitimate:    true,
			Confidence:      googleConfidence,
			TrustedProvider: "google",
			Reasons:         []string{fmt.Sprintf("Email from trusted Google domain: %s", senderDomain)},
		}
	}
	if v.matchesGooglePattern(facts) {
		return core.LegitimacyResult{
			IsLegitimate:    true,
			Confidence:      googleConfidence,
			TrustedProvider: "google",
			Reasons:         []string{"Verified legitimate Google email pattern"},
		}
	}

	var result core.LegitimacyResult

	trusted, provider := trustedProviderFor(facts.SenderAddress, senderDomain)
	result.TrustedProvider = provider
	if trusted {
		result.IsLegitimate = true
		result.Confidence = trustedConfidence
		result.Reasons = append(result.Reasons, fmt.Sprintf("Sender is from trusted provider: %s", provider))
		v.logger.Debug("Trusted provider detected", zap.String("provider", provider))

		legitimateURLs, suspiciousURLs := v.tallyURLs(ctx, facts.URLs)
		if legitimateURLs > 0 && suspiciousURLs == 0 {
			result.Confidence = trustedAllURLsBoost
			result.Reasons = append(result.Reasons, "All URLs belong to trusted domains")
		}
		if result.Confidence > trustedConfidence {
			return result
		}
	}

	// Fall back to message authentication: two of SPF/DKIM/DMARC passing
	// is strong evidence the sender domain is not forged.
	spf, dkim, dmarc := authenticationResults(facts.Headers)
	authScore := 0
	if spf {
		authScore++
		result.Reasons = append(result.Reasons, "SPF authentication passed")
	}
	if dkim {
		authScore++
		result.Reasons = append(result.Reasons, "DKIM authentication passed")
	}
	if dmarc {
		authScore++
		result.Reasons = append(result.Reasons, "DMARC authentication passed")
	}
	if authScore >= 2 {
		result.IsLegitimate = true
		if result.Confidence < authFallbackConfidence {
			result.Confidence = authFallbackConfidence
		}
	}

	return result
}

// matchesGooglePattern recognizes legitimate Google notification emails
// by their sender name, keywords and URLs.
func (v *Legitimacy) matchesGooglePattern(facts *core.EmailFacts) bool {
	sender := strings.ToLower(facts.SenderAddress)
	if strings.Contains(sender, "google") {
		return true
	}

	googleURLs := 0
	for _, u := range facts.URLs {
		if strings.Contains(u, "google.com") {
			googleURLs++
		}
	}
	if googleURLs == 0 {
		return false
	}

	subject := strings.ToLower(facts.Subject)
	body := strings.ToLower(facts.Body)
	for _, keyword := range googleKeywords {
		if strings.Contains(subject, keyword) || strings.Contains(body, keyword) {
			return true
		}
	}
	return false
}

// tallyURLs splits the email's URLs into verified-legitimate and the rest.
func (v *Legitimacy) tallyURLs(ctx context.Context, urls []string) (legitimate, suspicious int) {
	for _, u := range urls {
		verification := v.urls.Verify(ctx, u)
		if verification.IsLegitimate && len(verification.Warnings) == 0 {
			legitimate++
		} else {
			suspicious++
		}
	}
	return legitimate, suspicious
}

// trustedProviderFor resolves the provider a sender belongs to, if any.
func trustedProviderFor(senderAddress, senderDomain string) (bool, string) {
	lower := strings.ToLower(senderAddress)
	if strings.Contains(lower, "google") || strings.Contains(lower, "gmail") {
		return true, "google"
	}
	if senderDomain == "" {
		return false, ""
	}
	for provider, domains := range trustedProviders {
		for _, domain := range domains {
			if utils.DomainMatches(senderDomain, domain) {
				return true, provider
			}
		}
	}
	return false, ""
}
