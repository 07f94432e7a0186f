package di

import (
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/analyzer"
	"github.com/calder/phishscan/internal/classifier"
	"github.com/calder/phishscan/internal/config"
	"github.com/calder/phishscan/internal/core"
	"github.com/calder/phishscan/internal/dnscheck"
	"github.com/calder/phishscan/internal/factory"
	"github.com/calder/phishscan/internal/logging"
	"github.com/calder/phishscan/internal/metrics"
	"github.com/calder/phishscan/internal/parser"
	"github.com/calder/phishscan/internal/ports"
	"github.com/calder/phishscan/internal/utils"
	"github.com/calder/phishscan/internal/verify"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register email parser
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger, tp *utils.TextProcessor) *parser.EmailParser {
		return parser.NewEmailParser(logger, tp, cfg.GetScanner().MaxBodySize)
	}); err != nil {
		return nil, err
	}

	// Register LLM assist
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMAssist, error) {
		return f.CreateAssist()
	}); err != nil {
		return nil, err
	}

	// Register scan store
	if err := container.Provide(func(f *factory.StoreFactory) (core.ScanStore, error) {
		if !f.IsStoreEnabled() {
			return nil, nil
		}
		return f.CreateScanStore()
	}); err != nil {
		return nil, err
	}

	// Register local-signal oracles
	if err := container.Provide(func(logger *zap.Logger) core.ClassifierOracle {
		return classifier.NewKeyword(logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.DNSChecker {
		dnsCfg := cfg.GetDNS()
		return dnscheck.NewChecker(logger, dnsCfg.Timeout, dnsCfg.CacheTTL, dnsCfg.CleanupFrequency)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.URLReputationOracle {
		ttl, err := cfg.GetDuration("urlverify.cache_ttl")
		if err != nil {
			ttl = time.Hour
		}
		cleanup, err := cfg.GetDuration("urlverify.cleanup_frequency")
		if err != nil {
			cleanup = 10 * time.Minute
		}
		return verify.NewURLVerifier(logger, ttl, cleanup)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(urls core.URLReputationOracle, logger *zap.Logger) core.LegitimacyVerifier {
		return verify.NewLegitimacy(urls, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.WhitelistOracle {
		return verify.NewWhitelistWithDomains(logger, cfg.GetScanner().TrustedDomains)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(dns core.DNSChecker, urls core.URLReputationOracle, logger *zap.Logger) core.ElementExtractor {
		return analyzer.NewExtractor(dns, urls, logger)
	}); err != nil {
		return nil, err
	}

	// Register fusion engine
	if err := container.Provide(core.NewFusionEngine); err != nil {
		return nil, err
	}

	// Register metrics recorder
	if err := container.Provide(metrics.NewRecorder); err != nil {
		return nil, err
	}

	// Register scan service
	if err := container.Provide(func(
		cfg *config.Config,
		cls core.ClassifierOracle,
		legitimacy core.LegitimacyVerifier,
		extractor core.ElementExtractor,
		whitelist core.WhitelistOracle,
		llm core.LLMAssist,
		fusion *core.FusionEngine,
		store core.ScanStore,
		recorder *metrics.Recorder,
		logger *zap.Logger,
	) *core.ScanService {
		scannerCfg := cfg.GetScanner()
		return core.NewScanService(
			cls,
			legitimacy,
			extractor,
			whitelist,
			llm,
			fusion,
			store,
			recorder,
			logger,
			scannerCfg.LLMEnabled,
			store != nil,
			scannerCfg.ScanTimeout,
		)
	}); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
