package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MetricsRecorder receives per-scan observations. Implementations must be
// safe for concurrent use.
type MetricsRecorder interface {
	RecordScan(verdict Verdict, duration time.Duration)
	RecordLlmAssist(enabled bool, overrideRule string)
}

// neutralClassifierResult substitutes for a failed classifier oracle so
// the scan can continue on the remaining signals.
func neutralClassifierResult() *ClassifierResult {
	return &ClassifierResult{
		Prediction:    0,
		RawConfidence: 0.5,
		Features:      ClassifierFeatures{},
	}
}

// ScanService runs the full scan pipeline: whitelist check, parallel
// signal collection, optional LLM assist, fusion, persistence.
type ScanService struct {
	classifier ClassifierOracle
	legitimacy LegitimacyVerifier
	extractor  ElementExtractor
	whitelist  WhitelistOracle
	llm        LLMAssist
	fusion     *FusionEngine
	store      ScanStore
	metrics    MetricsRecorder
	logger     *zap.Logger

	llmEnabled   bool
	storeEnabled bool
	scanTimeout  time.Duration
}

// NewScanService creates a new scan service. The store and llm may be nil
// when the corresponding feature is disabled.
func NewScanService(
	classifier ClassifierOracle,
	legitimacy LegitimacyVerifier,
	extractor ElementExtractor,
	whitelist WhitelistOracle,
	llm LLMAssist,
	fusion *FusionEngine,
	store ScanStore,
	metrics MetricsRecorder,
	logger *zap.Logger,
	llmEnabled bool,
	storeEnabled bool,
	scanTimeout time.Duration,
) *ScanService {
	return &ScanService{
		classifier:   classifier,
		legitimacy:   legitimacy,
		extractor:    extractor,
		whitelist:    whitelist,
		llm:          llm,
		fusion:       fusion,
		store:        store,
		metrics:      metrics,
		logger:       logger,
		llmEnabled:   llmEnabled,
		storeEnabled: storeEnabled,
		scanTimeout:  scanTimeout,
	}
}

// ScanEmail scans one email and returns its verdict. External-dependency
// failures degrade to neutral signals and never abort the scan; only an
// internal fusion defect yields the error verdict, and that result is
// returned to the caller without being persisted.
func (s *ScanService) ScanEmail(ctx context.Context, facts *EmailFacts, scanCtx ScanContext) (verdict *ScanVerdict, err error) {
	started := time.Now()

	if s.scanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.scanTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Fusion engine panic", zap.Any("panic", r))
			verdict = &ScanVerdict{
				Verdict:            VerdictError,
				ConfidencePercent:  0,
				Explanation:        "Internal error while analyzing this email.",
				SuspiciousElements: []SuspiciousElement{},
				ScannedAt:          time.Now().UTC(),
			}
			err = fmt.Errorf("scan failed: %v", r)
		}
		if s.metrics != nil && verdict != nil {
			s.metrics.RecordScan(verdict.Verdict, time.Since(started))
		}
	}()

	wl := s.whitelist.Check(facts)
	if wl.IsWhitelisted && wl.Confidence > whitelistMinConfidence {
		result := s.fusion.Fuse(FusionInput{
			Facts:      facts,
			Classifier: neutralClassifierResult(),
			Whitelist:  wl,
			Context:    scanCtx,
			Elements:   []SuspiciousElement{},
		})
		s.persist(ctx, facts, scanCtx, result)
		return result, nil
	}

	var (
		classifierResult *ClassifierResult
		legitimacyResult LegitimacyResult
		elements         []SuspiciousElement
	)

	// Independent signal collection; the oracles share no mutable state.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Warn("Classifier panic, using neutral default", zap.Any("panic", r))
				classifierResult = neutralClassifierResult()
				err = nil
			}
		}()
		res, cerr := s.classifier.Predict(gctx, facts.Body)
		if cerr != nil {
			s.logger.Warn("Classifier unavailable, using neutral default", zap.Error(cerr))
			classifierResult = neutralClassifierResult()
			return nil
		}
		classifierResult = res
		return nil
	})
	g.Go(func() error {
		legitimacyResult = s.legitimacy.Verify(gctx, facts)
		return nil
	})
	g.Go(func() error {
		elements = s.extractor.Extract(gctx, facts)
		return nil
	})
	// The workers never return errors; the join is a barrier so fusion
	// only ever sees complete results.
	_ = g.Wait()

	if classifierResult == nil {
		classifierResult = neutralClassifierResult()
	}
	if elements == nil {
		elements = []SuspiciousElement{}
	}

	llmResult := LlmResult{Enabled: false}
	if s.llmEnabled && s.llm != nil {
		llmResult = s.llm.Analyze(ctx, facts.Body)
		if llmResult.Enabled {
			s.logger.Info("LLM assist opinion",
				zap.String("verdict", string(llmResult.Verdict)),
				zap.Float64("confidence", llmResult.Confidence))
		}
	}

	result := s.fusion.Fuse(FusionInput{
		Facts:      facts,
		Classifier: classifierResult,
		Legitimacy: legitimacyResult,
		Elements:   elements,
		Llm:        llmResult,
		Whitelist:  wl,
		Context:    scanCtx,
	})

	if s.metrics != nil {
		s.metrics.RecordLlmAssist(llmResult.Enabled, result.Diagnostics.LlmOverrideRule)
	}

	s.persist(ctx, facts, scanCtx, result)
	return result, nil
}

// persist stores a completed scan. Persistence failures are logged, never
// fatal, and error verdicts are never written.
func (s *ScanService) persist(ctx context.Context, facts *EmailFacts, scanCtx ScanContext, result *ScanVerdict) {
	if !s.storeEnabled || s.store == nil || result.Verdict == VerdictError {
		return
	}
	record := &ScanRecord{
		Subject:           facts.Subject,
		Sender:            facts.SenderAddress,
		SenderDomain:      facts.SenderDomain,
		Verdict:           result.Verdict,
		ConfidencePercent: result.ConfidencePercent,
		Explanation:       result.Explanation,
		Source:            scanCtx.Source,
		ScannedAt:         result.ScannedAt,
	}
	if err := s.store.Save(ctx, record); err != nil {
		s.logger.Error("Failed to persist scan", zap.Error(err))
	}
}

// History returns the most recent persisted scans.
func (s *ScanService) History(ctx context.Context, limit int) ([]*ScanRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("scan store is not configured")
	}
	return s.store.Recent(ctx, limit)
}

// VerdictCounts returns aggregate scan counts grouped by verdict.
func (s *ScanService) VerdictCounts(ctx context.Context) (map[Verdict]int64, error) {
	if s.store == nil {
		return nil, fmt.Errorf("scan store is not configured")
	}
	return s.store.CountByVerdict(ctx)
}
