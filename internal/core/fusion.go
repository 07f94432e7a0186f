package core

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Empirically tuned thresholds. These are configuration constants, not
// structural invariants; changing one shifts the verdict boundary without
// changing the precedence order.
const (
	whitelistMinConfidence = 0.9

	llmPhishingOverrideMin     = 0.7
	llmSafeOverrideMin         = 0.6
	llmSoftOverrideMin         = 0.5
	llmSoftOverrideClassifier  = 0.7
	llmShortMessageOverrideMin = 0.8
	shortMessageMaxLen         = 50

	legitimacyOverrideMin    = 0.7
	legitimacyBandBase       = 0.85
	legitimacyBandSlope      = 0.33
	connectedAccountScore    = 0.98
	whitelistDisplayScore    = 98.0
	highConfidenceCutoff     = 0.8
	moderateConfidenceCutoff = 0.6
	safeElementLimit         = 2
	legitimacyElementLimit   = 3
)

// urgentKeywords are the keyword element values that mark pressure language.
var urgentKeywords = map[string]bool{
	"urgent":      true,
	"immediately": true,
	"alert":       true,
	"verify":      true,
}

// FusionInput bundles the independent signals consumed by one fusion run.
// All fields are per-request values; the engine never mutates them.
type FusionInput struct {
	Facts      *EmailFacts
	Classifier *ClassifierResult
	Legitimacy LegitimacyResult
	Elements   []SuspiciousElement
	Llm        LlmResult
	Whitelist  WhitelistResult
	Context    ScanContext
}

// FusionEngine combines the classifier probability, legitimacy score,
// suspicious-element list and optional LLM opinion into one verdict under
// a fixed precedence policy.
type FusionEngine struct {
	logger *zap.Logger
}

// NewFusionEngine creates a new fusion engine.
func NewFusionEngine(logger *zap.Logger) *FusionEngine {
	return &FusionEngine{logger: logger}
}

// Fuse produces the final verdict for one scan.
func (e *FusionEngine) Fuse(in FusionInput) *ScanVerdict {
	// Hard whitelist wins over every other signal.
	if in.Whitelist.IsWhitelisted && in.Whitelist.Confidence > whitelistMinConfidence {
		e.logger.Info("Whitelist short-circuit",
			zap.String("provider", in.Whitelist.Provider),
			zap.Float64("confidence", in.Whitelist.Confidence))
		return &ScanVerdict{
			Verdict:            VerdictSafe,
			ConfidencePercent:  whitelistDisplayScore,
			Explanation:        fmt.Sprintf("Email is from a trusted source (%s).", in.Whitelist.Provider),
			RecommendedAction:  "This email appears to be legitimate and comes from a trusted source.",
			SuspiciousElements: []SuspiciousElement{},
			Diagnostics: Diagnostics{
				WhitelistProvider: in.Whitelist.Provider,
			},
			ScannedAt: time.Now().UTC(),
		}
	}

	legitimacy := in.Legitimacy
	if in.Context.ConnectedAccount && senderMatchesAccount(in.Facts.SenderDomain, in.Context.AccountDomains) {
		// Trust boost for mail arriving through a pre-authorized inbox
		// connection. Applies to a per-scan copy only.
		e.logger.Info("Connected-account trust boost",
			zap.String("sender_domain", in.Facts.SenderDomain),
			zap.String("provider", in.Context.AccountProvider))
		legitimacy = LegitimacyResult{
			IsLegitimate:    true,
			Confidence:      connectedAccountScore,
			TrustedProvider: in.Context.AccountProvider,
			Reasons:         append(append([]string{}, in.Legitimacy.Reasons...), "Connected account provider match"),
		}
	}

	prediction := in.Classifier.Prediction
	confidence := in.Classifier.RawConfidence
	rawConfidence := in.Classifier.RawConfidence

	diag := Diagnostics{
		Features:          in.Classifier.Features,
		LegitimacyReasons: legitimacy.Reasons,
	}

	// confidence starts as P(phishing); LLM safe overrides and the
	// legitimacy override replace it with a safeness score.
	confidenceIsSafeness := false

	if in.Llm.Enabled {
		diag.LlmEnabled = true
		diag.LlmVerdict = in.Llm.Verdict
		diag.LlmConfidence = in.Llm.Confidence
		diag.LlmReasons = in.Llm.Reasons

		switch {
		case in.Llm.Verdict == VerdictPhishing && prediction == 0:
			if in.Llm.Confidence >= llmPhishingOverrideMin {
				e.logger.Info("LLM override: classifier safe, LLM phishing")
				prediction = 1
				if in.Llm.Confidence > confidence {
					confidence = in.Llm.Confidence
				}
				diag.LlmOverrideRule = "phishing_override"
			}
		case in.Llm.Verdict == VerdictSafe && prediction == 1:
			if in.Llm.Confidence >= llmSafeOverrideMin {
				e.logger.Info("LLM override: classifier phishing, LLM safe")
				prediction = 0
				confidence = in.Llm.Confidence
				confidenceIsSafeness = true
				diag.LlmOverrideRule = "safe_override"
			} else if confidence < llmSoftOverrideClassifier && in.Llm.Confidence >= llmSoftOverrideMin {
				e.logger.Info("LLM soft override: reducing phishing confidence")
				prediction = 0
				confidence = (in.Llm.Confidence + (1 - confidence)) / 2
				confidenceIsSafeness = true
				diag.LlmOverrideRule = "soft_override"
			}
		}

		// Short personal messages are disproportionately misclassified
		// by the statistical model; a confident LLM safe call wins.
		if prediction == 1 &&
			len(strings.TrimSpace(strings.ToLower(in.Facts.Body))) < shortMessageMaxLen &&
			in.Llm.Verdict == VerdictSafe &&
			in.Llm.Confidence >= llmShortMessageOverrideMin {
			e.logger.Info("LLM override: short innocent message")
			prediction = 0
			confidence = in.Llm.Confidence
			confidenceIsSafeness = true
			diag.LlmOverrideRule = "short_message_override"
		}
	}

	legitimacyOverride := false
	if legitimacy.IsLegitimate && legitimacy.Confidence > legitimacyOverrideMin {
		// Maps the 0.7-1.0 legitimacy range onto an 0.85-0.95 display
		// band: provider-verified mail is highly but not perfectly
		// trustworthy.
		prediction = 0
		confidence = legitimacyBandBase + (legitimacy.Confidence-legitimacyOverrideMin)*legitimacyBandSlope
		confidenceIsSafeness = true
		legitimacyOverride = true
		diag.TrustedProvider = legitimacy.TrustedProvider
	} else if prediction == 0 && !confidenceIsSafeness {
		// The classifier's phishing-probability must be inverted to
		// express safeness for a safe prediction.
		confidence = 1 - rawConfidence
		confidenceIsSafeness = true
	}

	confidencePercent := NormalizeConfidence(confidence)

	stats := tallyElements(in.Elements)
	rule := e.decide(prediction, confidence, legitimacyOverride, stats)

	explanation, action := e.describe(rule, legitimacy.TrustedProvider, stats)

	return &ScanVerdict{
		Verdict:            rule.verdict,
		ConfidencePercent:  confidencePercent,
		Explanation:        explanation,
		RecommendedAction:  action,
		SuspiciousElements: in.Elements,
		Diagnostics:        diag,
		ScannedAt:          time.Now().UTC(),
	}
}

// elementStats aggregates the suspicious-element list for rule evaluation.
type elementStats struct {
	count             int
	highSeverity      int
	mediumSeverity    int
	hasUrgentKeywords bool
	hasHighSevURL     bool
	hasMismatchedLink bool
}

func tallyElements(elements []SuspiciousElement) elementStats {
	var s elementStats
	s.count = len(elements)
	for _, elem := range elements {
		switch elem.Severity {
		case SeverityHigh:
			s.highSeverity++
		case SeverityMedium:
			s.mediumSeverity++
		}
		if elem.Kind == ElementKeyword && urgentKeywords[strings.ToLower(elem.Value)] {
			s.hasUrgentKeywords = true
		}
		if elem.Kind == ElementURL && elem.Severity == SeverityHigh {
			s.hasHighSevURL = true
		}
		if elem.Kind == ElementDomainMismatch || strings.Contains(strings.ToLower(elem.Reason), "mismatched") {
			s.hasMismatchedLink = true
		}
	}
	return s
}

// verdictRule is one row of the ordered decision table. Rules are
// evaluated top to bottom; the first match wins.
type verdictRule struct {
	name    string
	verdict Verdict
	matches func(prediction int, confidence float64, legitimacyOverride bool, s elementStats) bool
}

var verdictRules = []verdictRule{
	{
		name:    "legitimate_provider_safe",
		verdict: VerdictSafe,
		matches: func(p int, c float64, lo bool, s elementStats) bool {
			return lo && s.highSeverity == 0 && s.count <= legitimacyElementLimit
		},
	},
	{
		name:    "legitimate_provider_suspicious",
		verdict: VerdictSuspicious,
		matches: func(p int, c float64, lo bool, s elementStats) bool {
			return lo
		},
	},
	{
		name:    "safe_high_confidence",
		verdict: VerdictSafe,
		matches: func(p int, c float64, lo bool, s elementStats) bool {
			return p == 0 && c > highConfidenceCutoff && s.count == 0
		},
	},
	{
		name:    "safe_moderate_confidence",
		verdict: VerdictSafe,
		matches: func(p int, c float64, lo bool, s elementStats) bool {
			return p == 0 && c > moderateConfidenceCutoff && s.count < safeElementLimit && s.highSeverity == 0
		},
	},
	{
		name:    "phishing_strong",
		verdict: VerdictPhishing,
		matches: func(p int, c float64, lo bool, s elementStats) bool {
			return p == 1 && c > highConfidenceCutoff && (s.count > 2 || s.highSeverity > 0)
		},
	},
	{
		name:    "phishing_moderate",
		verdict: VerdictPhishing,
		matches: func(p int, c float64, lo bool, s elementStats) bool {
			return p == 1 && c > moderateConfidenceCutoff
		},
	},
	{
		name:    "suspicious_elements",
		verdict: VerdictSuspicious,
		matches: func(p int, c float64, lo bool, s elementStats) bool {
			return s.count > 2 || s.highSeverity > 0 || s.hasHighSevURL || s.hasMismatchedLink
		},
	},
	{
		name:    "default",
		verdict: VerdictSuspicious,
		matches: func(p int, c float64, lo bool, s elementStats) bool {
			return true
		},
	},
}

func (e *FusionEngine) decide(prediction int, confidence float64, legitimacyOverride bool, s elementStats) verdictRule {
	for _, rule := range verdictRules {
		if rule.matches(prediction, confidence, legitimacyOverride, s) {
			e.logger.Debug("Verdict rule fired",
				zap.String("rule", rule.name),
				zap.String("verdict", string(rule.verdict)))
			return rule
		}
	}
	// Unreachable: the last rule always matches.
	return verdictRules[len(verdictRules)-1]
}

// describe synthesizes the explanation and recommended action for the
// fired rule. Purely descriptive; no decision logic.
func (e *FusionEngine) describe(rule verdictRule, provider string, s elementStats) (string, string) {
	switch rule.name {
	case "legitimate_provider_safe", "legitimate_provider_suspicious":
		if provider == "" {
			provider = "a verified provider"
		}
		explanation := fmt.Sprintf("This email appears to be from %s, which is a legitimate service provider.", provider)
		if s.count > 0 {
			explanation += fmt.Sprintf(" However, there are %d suspicious elements detected.", s.count)
		}
		return explanation, "This email is likely legitimate, but always verify before clicking links or downloading attachments."
	case "safe_high_confidence":
		return "This email appears to be legitimate based on content analysis.",
			"This email looks safe, but always be cautious with sensitive information."
	case "safe_moderate_confidence":
		return "This email is likely legitimate, but has some minor concerns.",
			"This email is probably safe, but verify any links before clicking."
	case "phishing_strong":
		explanation := fmt.Sprintf("This email has strong indicators of being a phishing attempt with %d suspicious elements.", s.count)
		if s.hasMismatchedLink {
			explanation += " It contains links that don't match their displayed text, which is a common phishing tactic."
		}
		if s.hasUrgentKeywords {
			explanation += " It uses urgent language to pressure you into action."
		}
		return explanation, "Do not click any links or download attachments from this email. Delete it immediately."
	case "phishing_moderate":
		return "This email has several characteristics of phishing attempts.",
			"Exercise extreme caution with this email. Do not click links or download attachments."
	case "suspicious_elements":
		explanation := fmt.Sprintf("This email contains %d suspicious elements that warrant caution.", s.count)
		if s.hasMismatchedLink {
			explanation += " There are links where the displayed text doesn't match the actual URL."
		}
		return explanation, "Be very careful with this email. Verify the sender through other channels before taking any action."
	default:
		return "This email has some characteristics that are unusual, but not definitively malicious.",
			"Proceed with caution. Verify the sender's identity before taking any requested action."
	}
}

func senderMatchesAccount(senderDomain string, accountDomains []string) bool {
	senderDomain = strings.ToLower(senderDomain)
	if senderDomain == "" {
		return false
	}
	for _, domain := range accountDomains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		if senderDomain == domain || strings.HasSuffix(senderDomain, "."+domain) {
			return true
		}
	}
	return false
}
