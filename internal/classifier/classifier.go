package classifier

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/core"
)

// Keyword weights by severity tier. The tiers double as the feature
// grouping reported back for explanations.
const (
	baseScore      = 0.08
	highWeight     = 0.13
	mediumWeight   = 0.07
	lowWeight      = 0.03
	mismatchWeight = 0.15
	capsWeight     = 0.08

	capsRatioThreshold    = 0.2
	highRiskCalibration   = 1.2
	formattingCalibration = 1.15
	highRiskPatternFloor  = 3
	maxScore              = 0.95
)

var highSeverityKeywords = []string{"password", "verify", "account", "urgent", "security", "suspend"}
var mediumSeverityKeywords = []string{"update", "click", "link", "login", "confirm"}
var lowSeverityKeywords = []string{"information", "details", "bank", "credit"}

// highRiskPhrases drive the confidence calibration step.
var highRiskPhrases = []string{
	"verify", "account", "urgent", "immediate", "suspend",
	"security", "update needed", "unusual activity", "password reset",
}

var hrefTextRe = regexp.MustCompile(`href=["']([^"']+)["'][^>]*>([^<]+)<`)

// Keyword is a text classifier scoring emails by weighted keyword
// evidence. It stands in for a trained model behind the same oracle
// interface and shares its failure contract: the caller substitutes a
// neutral result on error.
type Keyword struct {
	logger  *zap.Logger
	loaded  time.Time
	version string
}

// NewKeyword creates a new keyword classifier.
func NewKeyword(logger *zap.Logger) *Keyword {
	return &Keyword{
		logger:  logger,
		loaded:  time.Now().UTC(),
		version: "1.0.0",
	}
}

// Predict scores the email text and reports the features behind the score.
func (k *Keyword) Predict(ctx context.Context, text string) (*core.ClassifierResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	features := extractFeatures(text)
	confidence := scoreFeatures(text, &features)

	// Calibration mirrors the risk-factor boost of the trained model.
	if features.HighRiskPatterns >= highRiskPatternFloor {
		confidence = min(confidence*highRiskCalibration, 1.0)
	} else if features.SuspiciousFormatting {
		confidence = min(confidence*formattingCalibration, 1.0)
	}
	confidence = max(0, min(confidence, 1))

	prediction := 0
	if confidence >= 0.5 {
		prediction = 1
	}

	k.logger.Debug("Classifier prediction",
		zap.Int("prediction", prediction),
		zap.Float64("confidence", confidence),
		zap.Int("keywords", len(features.SuspiciousKeywords)))

	return &core.ClassifierResult{
		Prediction:    prediction,
		RawConfidence: confidence,
		Features:      features,
	}, nil
}

// Status describes the loaded model for the status endpoint.
func (k *Keyword) Status() map[string]interface{} {
	return map[string]interface{}{
		"model_loaded":  true,
		"model_version": k.version,
		"last_loaded":   k.loaded.Format(time.RFC3339),
		"fallback_mode": true,
	}
}

func extractFeatures(text string) core.ClassifierFeatures {
	lower := strings.ToLower(text)

	features := core.ClassifierFeatures{
		KeywordSeverity: map[core.Severity][]string{},
		EmailLength:     len(text),
	}

	appendTier := func(severity core.Severity, keywords []string) {
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				features.SuspiciousKeywords = append(features.SuspiciousKeywords, keyword)
				features.KeywordSeverity[severity] = append(features.KeywordSeverity[severity], keyword)
			}
		}
	}
	appendTier(core.SeverityHigh, highSeverityKeywords)
	appendTier(core.SeverityMedium, mediumSeverityKeywords)
	appendTier(core.SeverityLow, lowSeverityKeywords)

	for _, phrase := range highRiskPhrases {
		if strings.Contains(lower, phrase) {
			features.HighRiskPatterns++
		}
	}

	features.ContainsURLs = strings.Contains(lower, "http://") ||
		strings.Contains(lower, "https://") ||
		strings.Contains(lower, "www.")

	// Displayed link text that hides a different destination.
	for _, m := range hrefTextRe.FindAllStringSubmatch(text, -1) {
		linkURL, linkText := m[1], strings.TrimSpace(m[2])
		if strings.Contains(linkText, linkURL) || linkText == "click here" || linkText == "here" {
			continue
		}
		features.MismatchedURLs = append(features.MismatchedURLs, core.MismatchedURL{
			Text: linkText,
			URL:  linkURL,
		})
	}

	features.SuspiciousFormatting = capsRatio(text) > capsRatioThreshold

	return features
}

func scoreFeatures(text string, features *core.ClassifierFeatures) float64 {
	score := baseScore
	score += float64(len(features.KeywordSeverity[core.SeverityHigh])) * highWeight
	score += float64(len(features.KeywordSeverity[core.SeverityMedium])) * mediumWeight
	score += float64(len(features.KeywordSeverity[core.SeverityLow])) * lowWeight
	score += float64(len(features.MismatchedURLs)) * mismatchWeight
	if features.SuspiciousFormatting {
		score += capsWeight
	}
	return min(score, maxScore)
}

// capsRatio is the fraction of letters written in upper case.
func capsRatio(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	upper := 0
	for _, r := range text {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(len(text))
}
