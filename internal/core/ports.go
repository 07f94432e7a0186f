package core

import (
	"context"
)

// ClassifierOracle wraps the statistical text classifier. The service
// treats it as a black box; a failure is substituted with a neutral
// default rather than propagated.
type ClassifierOracle interface {
	// Predict scores the email text, returning 1/0 plus P(phishing).
	Predict(ctx context.Context, text string) (*ClassifierResult, error)
}

// URLVerification is the reputation oracle's judgement of one URL.
type URLVerification struct {
	IsLegitimate bool
	Confidence   float64
	Service      string
	Reasons      []string
	Warnings     []string
}

// URLReputationOracle checks URLs against known-legitimate service patterns.
type URLReputationOracle interface {
	Verify(ctx context.Context, url string) URLVerification
}

// DNSChecker reports whether a domain resolves. A lookup failure or
// timeout means "unknown", which callers must treat as neutral.
type DNSChecker interface {
	// Exists returns (exists, confirmed). confirmed is false when the
	// lookup could not complete, in which case exists is meaningless.
	Exists(ctx context.Context, domain string) (exists bool, confirmed bool)
}

// LLMAssist provides the optional second-opinion analysis. Implementations
// must never return an error into fusion: any failure is reported as
// LlmResult{Enabled: false}.
type LLMAssist interface {
	Analyze(ctx context.Context, text string) LlmResult
}

// WhitelistOracle checks the hard whitelist that short-circuits scanning.
type WhitelistOracle interface {
	Check(facts *EmailFacts) WhitelistResult
}

// LegitimacyVerifier scores whether the sender matches a known trusted
// provider, independent of the statistical classifier.
type LegitimacyVerifier interface {
	Verify(ctx context.Context, facts *EmailFacts) LegitimacyResult
}

// ElementExtractor produces the ordered list of suspicious elements for
// an email. Deterministic: identical facts yield an identical list.
type ElementExtractor interface {
	Extract(ctx context.Context, facts *EmailFacts) []SuspiciousElement
}

// ScanStore persists completed scans for history and analytics.
type ScanStore interface {
	Save(ctx context.Context, record *ScanRecord) error
	Recent(ctx context.Context, limit int) ([]*ScanRecord, error)
	CountByVerdict(ctx context.Context) (map[Verdict]int64, error)
	Close() error
}
