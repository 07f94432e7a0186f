package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/adapters/bedrock"
	"github.com/calder/phishscan/internal/adapters/gemini"
	"github.com/calder/phishscan/internal/adapters/openai"
	"github.com/calder/phishscan/internal/config"
	"github.com/calder/phishscan/internal/core"
	"github.com/calder/phishscan/internal/utils"
)

// LLMFactory creates LLM assist clients
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateAssist creates an LLM assist client based on the configuration.
// Returns (nil, nil) when the assist is disabled; the scan service treats
// a nil assist as "local signals only".
func (f *LLMFactory) CreateAssist() (core.LLMAssist, error) {
	if !f.cfg.GetScanner().LLMEnabled {
		return nil, nil
	}

	llmConfig := f.cfg.GetLLM()
	switch llmConfig.Provider {
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateAssist()
	case "gemini":
		geminiCfg := f.cfg.GetGemini()
		if geminiCfg.APIKey == "" {
			return nil, fmt.Errorf("gemini API key is required")
		}
		return gemini.NewFactory(
			geminiCfg.APIKey,
			geminiCfg.ModelName,
			geminiCfg.MaxTokens,
			geminiCfg.Temperature,
			geminiCfg.TopP,
			geminiCfg.MaxBodySize,
			f.logger,
			f.textProcessor,
		).CreateAssist()
	case "openai":
		if f.cfg.GetOpenAI().APIKey == "" {
			return nil, fmt.Errorf("openai API key is required")
		}
		return openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateAssist()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
