package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeClassifier struct {
	result *ClassifierResult
	err    error
	panics bool

	mu     sync.Mutex
	called bool
}

func (f *fakeClassifier) Predict(ctx context.Context, text string) (*ClassifierResult, error) {
	f.mu.Lock()
	f.called = true
	f.mu.Unlock()
	if f.panics {
		panic("classifier blew up")
	}
	return f.result, f.err
}

func (f *fakeClassifier) wasCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.called
}

type fakeLegitimacy struct {
	result LegitimacyResult
}

func (f *fakeLegitimacy) Verify(ctx context.Context, facts *EmailFacts) LegitimacyResult {
	return f.result
}

type fakeExtractor struct {
	elements []SuspiciousElement
}

func (f *fakeExtractor) Extract(ctx context.Context, facts *EmailFacts) []SuspiciousElement {
	return f.elements
}

type fakeWhitelist struct {
	result WhitelistResult
}

func (f *fakeWhitelist) Check(facts *EmailFacts) WhitelistResult {
	return f.result
}

type fakeLlm struct {
	result LlmResult

	mu     sync.Mutex
	called bool
}

func (f *fakeLlm) Analyze(ctx context.Context, text string) LlmResult {
	f.mu.Lock()
	f.called = true
	f.mu.Unlock()
	return f.result
}

func (f *fakeLlm) wasCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.called
}

type fakeStore struct {
	saveErr error

	mu    sync.Mutex
	saved []*ScanRecord
}

func (f *fakeStore) Save(ctx context.Context, record *ScanRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, record)
	return nil
}

func (f *fakeStore) Recent(ctx context.Context, limit int) ([]*ScanRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved, nil
}

func (f *fakeStore) CountByVerdict(ctx context.Context) (map[Verdict]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[Verdict]int64)
	for _, r := range f.saved {
		counts[r.Verdict]++
	}
	return counts, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) savedRecords() []*ScanRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*ScanRecord{}, f.saved...)
}

type serviceFixture struct {
	classifier *fakeClassifier
	legitimacy *fakeLegitimacy
	extractor  *fakeExtractor
	whitelist  *fakeWhitelist
	llm        *fakeLlm
	store      *fakeStore
}

func newServiceFixture() *serviceFixture {
	return &serviceFixture{
		classifier: &fakeClassifier{result: &ClassifierResult{Prediction: 0, RawConfidence: 0.1}},
		legitimacy: &fakeLegitimacy{},
		extractor:  &fakeExtractor{elements: []SuspiciousElement{}},
		whitelist:  &fakeWhitelist{},
		llm:        &fakeLlm{result: LlmResult{Enabled: false}},
		store:      &fakeStore{},
	}
}

func (fx *serviceFixture) build(llmEnabled, storeEnabled bool) *ScanService {
	logger := zap.NewNop()
	return NewScanService(
		fx.classifier, fx.legitimacy, fx.extractor, fx.whitelist, fx.llm,
		NewFusionEngine(logger), fx.store, nil, logger,
		llmEnabled, storeEnabled, 5*time.Second,
	)
}

func TestScanEmailSafePath(t *testing.T) {
	fx := newServiceFixture()
	svc := fx.build(false, true)

	result, err := svc.ScanEmail(context.Background(), baseFacts(), ScanContext{Source: "api"})
	if err != nil {
		t.Fatalf("ScanEmail returned error: %v", err)
	}
	if result.Verdict != VerdictSafe {
		t.Errorf("verdict = %q, want %q", result.Verdict, VerdictSafe)
	}
	if result.ConfidencePercent != 90.0 {
		t.Errorf("confidence = %v, want 90.0", result.ConfidencePercent)
	}

	saved := fx.store.savedRecords()
	if len(saved) != 1 {
		t.Fatalf("persisted %d records, want 1", len(saved))
	}
	if saved[0].Verdict != VerdictSafe || saved[0].Source != "api" || saved[0].SenderDomain != "example.com" {
		t.Errorf("persisted record = %+v, missing verdict/source/sender fields", saved[0])
	}
}

func TestScanEmailWhitelistSkipsClassifier(t *testing.T) {
	fx := newServiceFixture()
	fx.whitelist.result = WhitelistResult{IsWhitelisted: true, Confidence: 0.95, Provider: "GitHub"}
	svc := fx.build(true, false)

	result, err := svc.ScanEmail(context.Background(), baseFacts(), ScanContext{})
	if err != nil {
		t.Fatalf("ScanEmail returned error: %v", err)
	}
	if result.Verdict != VerdictSafe || result.ConfidencePercent != 98.0 {
		t.Errorf("result = %q/%v, want safe/98.0", result.Verdict, result.ConfidencePercent)
	}
	if fx.classifier.wasCalled() {
		t.Error("classifier was invoked for a whitelisted sender")
	}
	if fx.llm.wasCalled() {
		t.Error("LLM assist was invoked for a whitelisted sender")
	}
}

func TestScanEmailClassifierErrorDegradesToNeutral(t *testing.T) {
	fx := newServiceFixture()
	fx.classifier.result = nil
	fx.classifier.err = errors.New("model endpoint unreachable")
	svc := fx.build(false, false)

	result, err := svc.ScanEmail(context.Background(), baseFacts(), ScanContext{})
	if err != nil {
		t.Fatalf("ScanEmail returned error: %v", err)
	}
	// Neutral classifier default: prediction 0 at 0.5, inverted to 50%.
	if result.Verdict != VerdictSuspicious {
		t.Errorf("verdict = %q, want %q", result.Verdict, VerdictSuspicious)
	}
	if result.ConfidencePercent != 50.0 {
		t.Errorf("confidence = %v, want 50.0", result.ConfidencePercent)
	}
}

func TestScanEmailClassifierPanicDegradesToNeutral(t *testing.T) {
	fx := newServiceFixture()
	fx.classifier.panics = true
	svc := fx.build(false, false)

	result, err := svc.ScanEmail(context.Background(), baseFacts(), ScanContext{})
	if err != nil {
		t.Fatalf("ScanEmail returned error: %v", err)
	}
	if result.Verdict != VerdictSuspicious || result.ConfidencePercent != 50.0 {
		t.Errorf("result = %q/%v, want suspicious/50.0", result.Verdict, result.ConfidencePercent)
	}
}

func TestScanEmailLlmDisabled(t *testing.T) {
	fx := newServiceFixture()
	fx.llm.result = LlmResult{Enabled: true, Verdict: VerdictPhishing, Confidence: 0.99}
	svc := fx.build(false, false)

	result, err := svc.ScanEmail(context.Background(), baseFacts(), ScanContext{})
	if err != nil {
		t.Fatalf("ScanEmail returned error: %v", err)
	}
	if fx.llm.wasCalled() {
		t.Error("LLM assist was invoked while disabled")
	}
	if result.Verdict != VerdictSafe {
		t.Errorf("verdict = %q, want %q", result.Verdict, VerdictSafe)
	}
}

func TestScanEmailLlmOverrideApplied(t *testing.T) {
	fx := newServiceFixture()
	fx.classifier.result = &ClassifierResult{Prediction: 0, RawConfidence: 0.3}
	fx.llm.result = LlmResult{Enabled: true, Verdict: VerdictPhishing, Confidence: 0.85}
	svc := fx.build(true, false)

	result, err := svc.ScanEmail(context.Background(), baseFacts(), ScanContext{})
	if err != nil {
		t.Fatalf("ScanEmail returned error: %v", err)
	}
	if result.Verdict != VerdictPhishing {
		t.Errorf("verdict = %q, want %q", result.Verdict, VerdictPhishing)
	}
	if !result.Diagnostics.LlmEnabled || result.Diagnostics.LlmOverrideRule != "phishing_override" {
		t.Errorf("diagnostics = %+v, want recorded phishing_override", result.Diagnostics)
	}
}

func TestScanEmailInternalDefectYieldsErrorVerdict(t *testing.T) {
	fx := newServiceFixture()
	svc := fx.build(false, true)

	// A nil facts value with a connected-account context trips the fusion
	// engine; the defect must surface as the error verdict and must not
	// be persisted.
	result, err := svc.ScanEmail(context.Background(), nil, ScanContext{ConnectedAccount: true, AccountDomains: []string{"example.com"}})
	if err == nil {
		t.Fatal("expected an error for an internal defect")
	}
	if result == nil || result.Verdict != VerdictError {
		t.Fatalf("result = %+v, want error verdict", result)
	}
	if result.ConfidencePercent != 0 {
		t.Errorf("confidence = %v, want 0", result.ConfidencePercent)
	}
	if len(fx.store.savedRecords()) != 0 {
		t.Error("error verdict was persisted")
	}
}

func TestScanEmailStoreFailureIsNonFatal(t *testing.T) {
	fx := newServiceFixture()
	fx.store.saveErr = errors.New("disk full")
	svc := fx.build(false, true)

	result, err := svc.ScanEmail(context.Background(), baseFacts(), ScanContext{})
	if err != nil {
		t.Fatalf("ScanEmail returned error: %v", err)
	}
	if result.Verdict != VerdictSafe {
		t.Errorf("verdict = %q, want %q", result.Verdict, VerdictSafe)
	}
}

func TestHistoryWithoutStore(t *testing.T) {
	fx := newServiceFixture()
	fx.store = nil
	logger := zap.NewNop()
	svc := NewScanService(
		fx.classifier, fx.legitimacy, fx.extractor, fx.whitelist, fx.llm,
		NewFusionEngine(logger), nil, nil, logger, false, false, 0,
	)
	if _, err := svc.History(context.Background(), 10); err == nil {
		t.Error("History without a store should fail")
	}
	if _, err := svc.VerdictCounts(context.Background()); err == nil {
		t.Error("VerdictCounts without a store should fail")
	}
}
