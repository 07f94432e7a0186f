package core

import (
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestEngine() *FusionEngine {
	return NewFusionEngine(zap.NewNop())
}

func baseFacts() *EmailFacts {
	return &EmailFacts{
		Subject:       "Quarterly report",
		SenderAddress: "alice@example.com",
		SenderDomain:  "example.com",
		Body:          "Please find the quarterly report attached. Let me know if you have questions.",
	}
}

func TestFuseWhitelistShortCircuit(t *testing.T) {
	engine := newTestEngine()
	result := engine.Fuse(FusionInput{
		Facts: baseFacts(),
		Classifier: &ClassifierResult{
			Prediction:    1,
			RawConfidence: 0.99,
		},
		Elements: []SuspiciousElement{
			{Kind: ElementURL, Value: "http://evil.test", Severity: SeverityHigh},
		},
		Whitelist: WhitelistResult{
			IsWhitelisted: true,
			Confidence:    0.95,
			Provider:      "GitHub",
		},
	})

	if result.Verdict != VerdictSafe {
		t.Fatalf("verdict = %q, want %q", result.Verdict, VerdictSafe)
	}
	if result.ConfidencePercent != 98.0 {
		t.Errorf("confidence = %v, want 98.0", result.ConfidencePercent)
	}
	if len(result.SuspiciousElements) != 0 {
		t.Errorf("whitelisted verdict carried %d elements, want none", len(result.SuspiciousElements))
	}
	if !strings.Contains(result.Explanation, "GitHub") {
		t.Errorf("explanation %q does not name the provider", result.Explanation)
	}
}

func TestFuseWhitelistBelowThresholdIgnored(t *testing.T) {
	engine := newTestEngine()
	result := engine.Fuse(FusionInput{
		Facts:      baseFacts(),
		Classifier: &ClassifierResult{Prediction: 1, RawConfidence: 0.9},
		Whitelist:  WhitelistResult{IsWhitelisted: true, Confidence: 0.9, Provider: "GitHub"},
		Elements: []SuspiciousElement{
			{Kind: ElementURL, Value: "http://evil.test", Severity: SeverityHigh},
			{Kind: ElementKeyword, Value: "urgent", Severity: SeverityMedium},
			{Kind: ElementKeyword, Value: "verify", Severity: SeverityMedium},
		},
	})
	if result.Verdict != VerdictPhishing {
		t.Errorf("verdict = %q, want %q (whitelist at exactly 0.9 must not short-circuit)", result.Verdict, VerdictPhishing)
	}
}

func TestFuseLegitimacyOverrideBand(t *testing.T) {
	engine := newTestEngine()

	// Legitimacy confidences above 0.7 map onto the 85-94.9 display band,
	// monotonically.
	previous := 0.0
	for lc := 0.71; lc <= 1.0; lc += 0.01 {
		result := engine.Fuse(FusionInput{
			Facts:      baseFacts(),
			Classifier: &ClassifierResult{Prediction: 1, RawConfidence: 0.95},
			Legitimacy: LegitimacyResult{
				IsLegitimate:    true,
				Confidence:      lc,
				TrustedProvider: "Google",
			},
		})
		if result.Verdict != VerdictSafe {
			t.Fatalf("lc=%v: verdict = %q, want %q", lc, result.Verdict, VerdictSafe)
		}
		want := math.Round((0.85+(lc-0.7)*0.33)*100*100) / 100
		if result.ConfidencePercent != want {
			t.Errorf("lc=%v: confidence = %v, want %v", lc, result.ConfidencePercent, want)
		}
		if result.ConfidencePercent < 85.0 || result.ConfidencePercent > 94.9 {
			t.Errorf("lc=%v: confidence %v outside [85, 94.9]", lc, result.ConfidencePercent)
		}
		if result.ConfidencePercent < previous {
			t.Errorf("lc=%v: confidence %v decreased from %v", lc, result.ConfidencePercent, previous)
		}
		previous = result.ConfidencePercent
	}
}

func TestFuseLegitimacyWithHighSeverityElements(t *testing.T) {
	engine := newTestEngine()
	result := engine.Fuse(FusionInput{
		Facts:      baseFacts(),
		Classifier: &ClassifierResult{Prediction: 0, RawConfidence: 0.2},
		Legitimacy: LegitimacyResult{IsLegitimate: true, Confidence: 0.9, TrustedProvider: "Google"},
		Elements: []SuspiciousElement{
			{Kind: ElementURL, Value: "http://paypa1-login.test", Severity: SeverityHigh},
		},
	})
	if result.Verdict != VerdictSuspicious {
		t.Errorf("verdict = %q, want %q (verified provider with high-severity elements)", result.Verdict, VerdictSuspicious)
	}
	if !strings.Contains(result.Explanation, "Google") {
		t.Errorf("explanation %q does not name the provider", result.Explanation)
	}
}

func TestFuseConnectedAccountBoost(t *testing.T) {
	engine := newTestEngine()
	facts := baseFacts()
	facts.SenderDomain = "mail.corp.example.com"
	result := engine.Fuse(FusionInput{
		Facts:      facts,
		Classifier: &ClassifierResult{Prediction: 1, RawConfidence: 0.8},
		Context: ScanContext{
			ConnectedAccount: true,
			AccountProvider:  "Google Workspace",
			AccountDomains:   []string{"corp.example.com"},
		},
	})
	if result.Verdict != VerdictSafe {
		t.Fatalf("verdict = %q, want %q", result.Verdict, VerdictSafe)
	}
	// 0.85 + (0.98-0.7)*0.33 = 0.9424
	if result.ConfidencePercent != 94.24 {
		t.Errorf("confidence = %v, want 94.24", result.ConfidencePercent)
	}
}

func TestFuseConnectedAccountDomainMismatch(t *testing.T) {
	engine := newTestEngine()
	facts := baseFacts()
	facts.SenderDomain = "evil.test"
	result := engine.Fuse(FusionInput{
		Facts:      facts,
		Classifier: &ClassifierResult{Prediction: 1, RawConfidence: 0.85},
		Context: ScanContext{
			ConnectedAccount: true,
			AccountProvider:  "Google Workspace",
			AccountDomains:   []string{"corp.example.com"},
		},
	})
	if result.Verdict == VerdictSafe {
		t.Errorf("connected account must not boost unrelated sender domains")
	}
}

func TestFuseLlmPhishingOverride(t *testing.T) {
	engine := newTestEngine()
	result := engine.Fuse(FusionInput{
		Facts:      baseFacts(),
		Classifier: &ClassifierResult{Prediction: 0, RawConfidence: 0.3},
		Llm: LlmResult{
			Enabled:    true,
			Verdict:    VerdictPhishing,
			Confidence: 0.8,
			Reasons:    []string{"credential harvesting language"},
		},
	})
	if result.Verdict != VerdictPhishing {
		t.Fatalf("verdict = %q, want %q", result.Verdict, VerdictPhishing)
	}
	if result.ConfidencePercent != 80.0 {
		t.Errorf("confidence = %v, want 80.0", result.ConfidencePercent)
	}
	if result.Diagnostics.LlmOverrideRule != "phishing_override" {
		t.Errorf("override rule = %q, want phishing_override", result.Diagnostics.LlmOverrideRule)
	}
}

func TestFuseLlmPhishingOverrideBelowThreshold(t *testing.T) {
	engine := newTestEngine()
	result := engine.Fuse(FusionInput{
		Facts:      baseFacts(),
		Classifier: &ClassifierResult{Prediction: 0, RawConfidence: 0.1},
		Llm: LlmResult{
			Enabled:    true,
			Verdict:    VerdictPhishing,
			Confidence: 0.65,
		},
	})
	if result.Verdict != VerdictSafe {
		t.Errorf("verdict = %q, want %q (LLM below override threshold)", result.Verdict, VerdictSafe)
	}
	if result.Diagnostics.LlmOverrideRule != "" {
		t.Errorf("override rule = %q, want none", result.Diagnostics.LlmOverrideRule)
	}
}

func TestFuseLlmSafeOverride(t *testing.T) {
	engine := newTestEngine()
	result := engine.Fuse(FusionInput{
		Facts:      baseFacts(),
		Classifier: &ClassifierResult{Prediction: 1, RawConfidence: 0.9},
		Llm: LlmResult{
			Enabled:    true,
			Verdict:    VerdictSafe,
			Confidence: 0.7,
		},
	})
	if result.Verdict != VerdictSafe {
		t.Fatalf("verdict = %q, want %q", result.Verdict, VerdictSafe)
	}
	if result.ConfidencePercent != 70.0 {
		t.Errorf("confidence = %v, want 70.0", result.ConfidencePercent)
	}
	if result.Diagnostics.LlmOverrideRule != "safe_override" {
		t.Errorf("override rule = %q, want safe_override", result.Diagnostics.LlmOverrideRule)
	}
}

func TestFuseLlmSoftOverride(t *testing.T) {
	engine := newTestEngine()
	result := engine.Fuse(FusionInput{
		Facts:      baseFacts(),
		Classifier: &ClassifierResult{Prediction: 1, RawConfidence: 0.65},
		Llm: LlmResult{
			Enabled:    true,
			Verdict:    VerdictSafe,
			Confidence: 0.55,
		},
	})
	// (0.55 + (1 - 0.65)) / 2 = 0.45
	if result.ConfidencePercent != 45.0 {
		t.Errorf("confidence = %v, want 45.0", result.ConfidencePercent)
	}
	if result.Verdict != VerdictSuspicious {
		t.Errorf("verdict = %q, want %q", result.Verdict, VerdictSuspicious)
	}
	if result.Diagnostics.LlmOverrideRule != "soft_override" {
		t.Errorf("override rule = %q, want soft_override", result.Diagnostics.LlmOverrideRule)
	}
}

func TestFuseShortMessageWithConfidentLlmSafe(t *testing.T) {
	engine := newTestEngine()
	facts := baseFacts()
	facts.Body = "Hey, lunch tomorrow at noon?"
	result := engine.Fuse(FusionInput{
		Facts:      facts,
		Classifier: &ClassifierResult{Prediction: 1, RawConfidence: 0.95},
		Llm: LlmResult{
			Enabled:    true,
			Verdict:    VerdictSafe,
			Confidence: 0.9,
		},
	})
	if result.Verdict != VerdictSafe {
		t.Errorf("verdict = %q, want %q (confident LLM safe on a short message)", result.Verdict, VerdictSafe)
	}
	if result.ConfidencePercent != 90.0 {
		t.Errorf("confidence = %v, want 90.0", result.ConfidencePercent)
	}
}

func TestFuseSafeConfidenceInversion(t *testing.T) {
	engine := newTestEngine()
	result := engine.Fuse(FusionInput{
		Facts:      baseFacts(),
		Classifier: &ClassifierResult{Prediction: 0, RawConfidence: 0.1},
	})
	if result.Verdict != VerdictSafe {
		t.Fatalf("verdict = %q, want %q", result.Verdict, VerdictSafe)
	}
	// Displayed confidence is safeness, not phishing probability.
	if result.ConfidencePercent != 90.0 {
		t.Errorf("confidence = %v, want 90.0", result.ConfidencePercent)
	}
}

func TestFusePhishingStrongExplanation(t *testing.T) {
	engine := newTestEngine()
	result := engine.Fuse(FusionInput{
		Facts:      baseFacts(),
		Classifier: &ClassifierResult{Prediction: 1, RawConfidence: 0.92},
		Elements: []SuspiciousElement{
			{Kind: ElementDomainMismatch, Value: "http://evil.test", Reason: "Link text doesn't match URL", Severity: SeverityHigh},
			{Kind: ElementKeyword, Value: "urgent", Reason: "Urgency keyword", Severity: SeverityMedium},
			{Kind: ElementKeyword, Value: "verify", Reason: "Urgency keyword", Severity: SeverityMedium},
		},
	})
	if result.Verdict != VerdictPhishing {
		t.Fatalf("verdict = %q, want %q", result.Verdict, VerdictPhishing)
	}
	if !strings.Contains(result.Explanation, "3 suspicious elements") {
		t.Errorf("explanation %q does not report the element count", result.Explanation)
	}
	if !strings.Contains(result.Explanation, "displayed text") {
		t.Errorf("explanation %q does not mention the mismatched link", result.Explanation)
	}
	if !strings.Contains(result.Explanation, "urgent language") {
		t.Errorf("explanation %q does not mention urgent language", result.Explanation)
	}
	if len(result.SuspiciousElements) != 3 {
		t.Errorf("verdict carried %d elements, want 3", len(result.SuspiciousElements))
	}
}

func TestFuseElementDrivenSuspicion(t *testing.T) {
	engine := newTestEngine()
	// A confident safe prediction still turns suspicious when the email
	// carries a high-severity URL.
	result := engine.Fuse(FusionInput{
		Facts:      baseFacts(),
		Classifier: &ClassifierResult{Prediction: 0, RawConfidence: 0.1},
		Elements: []SuspiciousElement{
			{Kind: ElementURL, Value: "http://192.168.1.1/login", Reason: "URL uses a raw IP address", Severity: SeverityHigh},
		},
	})
	if result.Verdict != VerdictSuspicious {
		t.Errorf("verdict = %q, want %q", result.Verdict, VerdictSuspicious)
	}
}

func TestVerdictRulePrecedence(t *testing.T) {
	engine := newTestEngine()
	tests := []struct {
		name       string
		prediction int
		confidence float64
		legit      bool
		stats      elementStats
		wantRule   string
	}{
		{"legitimacy wins over phishing prediction", 1, 0.95, true, elementStats{}, "legitimate_provider_safe"},
		{"legitimacy with high severity demotes", 1, 0.95, true, elementStats{count: 1, highSeverity: 1}, "legitimate_provider_suspicious"},
		{"legitimacy with too many elements demotes", 0, 0.9, true, elementStats{count: 4}, "legitimate_provider_suspicious"},
		{"clean confident safe", 0, 0.85, false, elementStats{}, "safe_high_confidence"},
		{"confident safe with one element drops a tier", 0, 0.85, false, elementStats{count: 1}, "safe_moderate_confidence"},
		{"confident phishing with evidence", 1, 0.85, false, elementStats{count: 3}, "phishing_strong"},
		{"confident phishing without evidence", 1, 0.85, false, elementStats{}, "phishing_moderate"},
		{"moderate phishing", 1, 0.65, false, elementStats{}, "phishing_moderate"},
		{"weak phishing with evidence", 1, 0.4, false, elementStats{count: 3}, "suspicious_elements"},
		{"mismatched link alone", 0, 0.5, false, elementStats{count: 1, hasMismatchedLink: true}, "suspicious_elements"},
		{"nothing conclusive", 0, 0.5, false, elementStats{}, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := engine.decide(tt.prediction, tt.confidence, tt.legit, tt.stats)
			if rule.name != tt.wantRule {
				t.Errorf("decide() fired %q, want %q", rule.name, tt.wantRule)
			}
		})
	}
}

func TestTallyElements(t *testing.T) {
	stats := tallyElements([]SuspiciousElement{
		{Kind: ElementURL, Value: "http://a.test", Severity: SeverityHigh},
		{Kind: ElementKeyword, Value: "Urgent", Severity: SeverityMedium},
		{Kind: ElementURLWarning, Value: "http://b.test", Reason: "Mismatched URL destination", Severity: SeverityLow},
	})
	if stats.count != 3 {
		t.Errorf("count = %d, want 3", stats.count)
	}
	if stats.highSeverity != 1 || stats.mediumSeverity != 1 {
		t.Errorf("severity tally = high %d / medium %d, want 1/1", stats.highSeverity, stats.mediumSeverity)
	}
	if !stats.hasUrgentKeywords {
		t.Error("urgent keyword not detected (case-insensitive match expected)")
	}
	if !stats.hasHighSevURL {
		t.Error("high-severity URL not detected")
	}
	if !stats.hasMismatchedLink {
		t.Error("mismatched link not detected from reason text")
	}
}

func TestSenderMatchesAccount(t *testing.T) {
	tests := []struct {
		sender  string
		domains []string
		want    bool
	}{
		{"example.com", []string{"example.com"}, true},
		{"mail.example.com", []string{"example.com"}, true},
		{"EXAMPLE.COM", []string{"example.com"}, true},
		{"notexample.com", []string{"example.com"}, false},
		{"example.com.evil.test", []string{"example.com"}, false},
		{"", []string{"example.com"}, false},
		{"example.com", nil, false},
	}
	for _, tt := range tests {
		if got := senderMatchesAccount(tt.sender, tt.domains); got != tt.want {
			t.Errorf("senderMatchesAccount(%q, %v) = %v, want %v", tt.sender, tt.domains, got, tt.want)
		}
	}
}
