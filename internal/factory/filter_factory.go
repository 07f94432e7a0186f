package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/adapters/filter"
	"github.com/calder/phishscan/internal/config"
	"github.com/calder/phishscan/internal/core"
	"github.com/calder/phishscan/internal/parser"
	"github.com/calder/phishscan/internal/ports"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg         *config.Config
	logger      *zap.Logger
	scanService *core.ScanService
	emailParser *parser.EmailParser
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, scanService *core.ScanService, emailParser *parser.EmailParser) *FilterFactory {
	return &FilterFactory{
		cfg:         cfg,
		logger:      logger,
		scanService: scanService,
		emailParser: emailParser,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	serverCfg := f.cfg.GetServer()

	switch serverCfg.FilterType {
	case "postfix":
		return filter.NewPostfixFilter(
			f.scanService,
			f.emailParser,
			f.logger,
			serverCfg.ListenAddress,
			serverCfg.BlockPhishing,
			serverCfg.VerdictHeader,
			serverCfg.ConfidenceHeader,
			serverCfg.ReasonHeader,
			serverCfg.PostfixAddress,
			serverCfg.PostfixPort,
			serverCfg.PostfixEnabled,
			serverCfg.SubjectPrefix,
			serverCfg.ModifySubject,
		), nil
	case "cli":
		return filter.NewCliFilter(
			f.scanService,
			f.emailParser,
			f.logger,
			f.cfg.GetBool("cli.verbose"),
			f.cfg.GetBool("cli.json_output"),
		)
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", serverCfg.FilterType)
	}
}
