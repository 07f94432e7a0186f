package openai

import (
	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/config"
	"github.com/calder/phishscan/internal/core"
	"github.com/calder/phishscan/internal/utils"
)

// Factory creates new instances of AssistClient.
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewFactory creates a new factory for OpenAI assist clients.
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateAssist creates a new AssistClient.
func (f *Factory) CreateAssist() (core.LLMAssist, error) {
	openaiCfg := f.cfg.GetOpenAI()

	return NewAssistClient(
		openaiCfg.APIKey,
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		openaiCfg.TopP,
		openaiCfg.MaxBodySize,
		f.logger,
		f.textProcessor,
	), nil
}
