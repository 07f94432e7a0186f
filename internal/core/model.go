package core

import (
	"time"
)

// Verdict is the final tri-state classification of a scanned email.
type Verdict string

const (
	VerdictSafe       Verdict = "safe"
	VerdictSuspicious Verdict = "suspicious"
	VerdictPhishing   Verdict = "phishing"

	// VerdictError marks a scan that failed inside the fusion engine itself.
	// It must never be persisted as a normal scan result.
	VerdictError Verdict = "error"
)

// Severity grades a single suspicious element.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Weight returns the numeric ordering of a severity level (higher is worse).
func (s Severity) Weight() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ElementKind identifies which check produced a suspicious element.
type ElementKind string

const (
	ElementURL                 ElementKind = "url"
	ElementDomain              ElementKind = "domain"
	ElementKeyword             ElementKind = "keyword"
	ElementURLPath             ElementKind = "url_path"
	ElementURLWarning          ElementKind = "url_warning"
	ElementVerificationWarning ElementKind = "verification_warning"
	ElementNonexistentDomain   ElementKind = "nonexistent_domain"
	ElementDomainMismatch      ElementKind = "domain_mismatch"
)

// SuspiciousElement is one discrete red flag detected in an email.
type SuspiciousElement struct {
	Kind     ElementKind `json:"type"`
	Value    string      `json:"value"`
	Reason   string      `json:"reason"`
	Severity Severity    `json:"severity"`
}

// EmailFacts is the immutable snapshot of an email produced once per scan
// by the parser and consumed read-only by every scoring component.
type EmailFacts struct {
	Subject       string
	SenderAddress string
	SenderDomain  string
	Body          string
	HTMLBody      string
	URLs          []string
	Headers       map[string]string
}

// LegitimacyResult is the output of the sender legitimacy verifier.
type LegitimacyResult struct {
	IsLegitimate    bool
	Confidence      float64
	TrustedProvider string
	Reasons         []string
}

// ClassifierFeatures carries the auxiliary signals emitted by the text
// classifier alongside its probability. Fields the fusion engine reads are
// named here rather than passed through an open map.
type ClassifierFeatures struct {
	SuspiciousKeywords   []string
	KeywordSeverity      map[Severity][]string
	HighRiskPatterns     int
	SuspiciousFormatting bool
	ContainsURLs         bool
	MismatchedURLs       []MismatchedURL
	EmailLength          int
}

// MismatchedURL records an anchor whose displayed text does not match its href.
type MismatchedURL struct {
	Text string
	URL  string
}

// ClassifierResult is the output of the statistical classifier oracle.
// Prediction is 1 for phishing, 0 for legitimate. RawConfidence is the
// oracle's P(phishing) and is treated as untrusted input: it may fall
// outside [0,1] and must survive normalization downstream.
type ClassifierResult struct {
	Prediction    int
	RawConfidence float64
	Features      ClassifierFeatures
}

// LlmResult is the optional second opinion from the LLM assist.
// Enabled=false is a normal terminal state, not an error.
type LlmResult struct {
	Enabled        bool
	Verdict        Verdict
	Confidence     float64
	Reasons        []string
	Recommendation string
}

// WhitelistResult is the output of the hard whitelist oracle.
type WhitelistResult struct {
	IsWhitelisted bool
	Confidence    float64
	Provider      string
	Reasons       []string
}

// ScanContext carries per-request flags supplied by the caller.
type ScanContext struct {
	// ConnectedAccount marks scans originating from a pre-authorized
	// inbox connection; sender domains matching one of AccountDomains
	// get a legitimacy trust boost.
	ConnectedAccount bool
	AccountProvider  string
	AccountDomains   []string
	SkipCache        bool
	Source           string
}

// Diagnostics is audit metadata attached to a verdict for analytics
// storage. It never feeds back into the decision.
type Diagnostics struct {
	Features          ClassifierFeatures `json:"-"`
	LlmEnabled        bool               `json:"llm_enabled"`
	LlmVerdict        Verdict            `json:"llm_verdict,omitempty"`
	LlmConfidence     float64            `json:"llm_confidence,omitempty"`
	LlmReasons        []string           `json:"llm_reasons,omitempty"`
	LlmOverrideRule   string             `json:"llm_override_rule,omitempty"`
	LegitimacyReasons []string           `json:"legitimacy_reasons,omitempty"`
	TrustedProvider   string             `json:"trusted_provider,omitempty"`
	WhitelistProvider string             `json:"whitelist_provider,omitempty"`
}

// ScanVerdict is the final artifact of one scan: created exactly once at
// the end of fusion, immutable, and the only object persisted or returned.
// ConfidencePercent is always within [0,100].
type ScanVerdict struct {
	Verdict            Verdict             `json:"verdict"`
	ConfidencePercent  float64             `json:"confidence"`
	Explanation        string              `json:"explanation"`
	RecommendedAction  string              `json:"recommended_action"`
	SuspiciousElements []SuspiciousElement `json:"suspicious_elements"`
	Diagnostics        Diagnostics         `json:"diagnostics"`
	ScannedAt          time.Time           `json:"scanned_at"`
}

// ScanRecord is the persisted form of a completed scan.
type ScanRecord struct {
	ID                string
	Subject           string
	Sender            string
	SenderDomain      string
	Verdict           Verdict
	ConfidencePercent float64
	Explanation       string
	Source            string
	ScannedAt         time.Time
}
