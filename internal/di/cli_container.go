package di

import (
	"flag"
	"strings"
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
	"github.com/calder/phishscan/internal/parser"
	"github.com/calder/phishscan/internal/ports"
	"github.com/calder/phishscan/internal/utils"
	"github.com/calder/phishscan/internal/verify"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// LLM provider flags
	LLMEnabled  bool
	Provider    string
	MaxTokens   int
	Temperature float64
	TopP        float64
	MaxBodySize int

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIModelName string

	// Scan flags
	ScanTimeout    time.Duration
	TrustedDomains string

	// Input flags
	InputFile   string
	Verbose     bool
	JSONLog     bool
	JSONOutput  bool
	ModelStatus bool
	ConfigFile  string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// LLM provider flags
	flag.BoolVar(&flags.LLMEnabled, "llm", false, "Enable the LLM assist pass")
	flag.StringVar(&flags.Provider, "provider", "gemini", "LLM provider (bedrock, gemini, openai)")
	flag.IntVar(&flags.MaxTokens, "max-tokens", 1000, "Maximum tokens for LLM response")
	flag.Float64Var(&flags.Temperature, "temperature", 0.1, "Temperature for LLM generation")
	flag.Float64Var(&flags.TopP, "top-p", 0.9, "Top-p for LLM generation")
	flag.IntVar(&flags.MaxBodySize, "max-body-size", 4096, "Maximum email body size to send to LLM")

	// Bedrock flags
	flag.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	flag.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	flag.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	flag.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	flag.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	flag.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4", "OpenAI model name")

	// Scan flags
	flag.DurationVar(&flags.ScanTimeout, "scan-timeout", 15*time.Second, "Per-email scan timeout")
	flag.StringVar(&flags.TrustedDomains, "trusted-domains", "", "Comma-separated list of additional trusted sender domains")

	// Input flags
	flag.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.BoolVar(&flags.JSONOutput, "json", false, "Print the verdict as JSON instead of the report")
	flag.BoolVar(&flags.ModelStatus, "model-status", false, "Print classifier status and exit")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.New()
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
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

	// Register scan service with no store and no metrics
	if err := container.Provide(func(
		cfg *config.Config,
		cls core.ClassifierOracle,
		legitimacy core.LegitimacyVerifier,
		extractor core.ElementExtractor,
		whitelist core.WhitelistOracle,
		llm core.LLMAssist,
		fusion *core.FusionEngine,
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
			nil, // No store for one-shot scans
			nil, // No metrics for one-shot scans
			logger,
			scannerCfg.LLMEnabled,
			false,
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

// splitTrimmed splits a comma-separated flag value into trimmed entries.
func splitTrimmed(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set some cli specific settings
	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", flags.Verbose)
	v.Set("cli.json_output", flags.JSONOutput)
	v.Set("store.enabled", false)

	// Set scan pipeline configuration
	v.Set("scanner.llm_enabled", flags.LLMEnabled)
	v.Set("scanner.scan_timeout", flags.ScanTimeout.String())
	if flags.TrustedDomains != "" {
		v.Set("scanner.trusted_domains", splitTrimmed(flags.TrustedDomains))
	}

	// Set LLM provider
	v.Set("llm.provider", flags.Provider)

	// Set provider-specific configuration
	switch flags.Provider {
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
		v.Set("bedrock.max_tokens", flags.MaxTokens)
		v.Set("bedrock.temperature", flags.Temperature)
		v.Set("bedrock.top_p", flags.TopP)
		v.Set("bedrock.max_body_size", flags.MaxBodySize)
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		v.Set("gemini.model_name", flags.GeminiModelName)
		v.Set("gemini.max_tokens", flags.MaxTokens)
		v.Set("gemini.temperature", flags.Temperature)
		v.Set("gemini.top_p", flags.TopP)
		v.Set("gemini.max_body_size", flags.MaxBodySize)
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		v.Set("openai.model_name", flags.OpenAIModelName)
		v.Set("openai.max_tokens", flags.MaxTokens)
		v.Set("openai.temperature", flags.Temperature)
		v.Set("openai.top_p", flags.TopP)
		v.Set("openai.max_body_size", flags.MaxBodySize)
	}

	return config.NewFromViper(v)
}
