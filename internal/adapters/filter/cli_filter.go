package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/core"
	"github.com/calder/phishscan/internal/parser"
)

// CliFilter scans a single message and prints the verdict to stdout.
type CliFilter struct {
	service    *core.ScanService
	parser     *parser.EmailParser
	logger     *zap.Logger
	verbose    bool
	jsonOutput bool
}

// NewCliFilter creates a new CLI filter.
func NewCliFilter(service *core.ScanService, emailParser *parser.EmailParser, logger *zap.Logger, verbose, jsonOutput bool) (*CliFilter, error) {
	return &CliFilter{
		service:    service,
		parser:     emailParser,
		logger:     logger,
		verbose:    verbose,
		jsonOutput: jsonOutput,
	}, nil
}

// ProcessEmail parses and scans one raw message and displays the result.
func (f *CliFilter) ProcessEmail(ctx context.Context, raw []byte) (*core.ScanVerdict, error) {
	facts, err := f.parser.Parse(raw)
	if err != nil {
		f.logger.Error("Failed to parse email", zap.Error(err))
		fmt.Printf("Error: %v\n", err)
		return nil, err
	}

	if f.jsonOutput {
		verdict, err := f.service.ScanEmail(ctx, facts, core.ScanContext{Source: "cli"})
		if err != nil {
			f.logger.Error("Failed to scan email", zap.Error(err))
			return nil, err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(verdict); err != nil {
			return nil, fmt.Errorf("failed to encode verdict: %w", err)
		}
		return verdict, nil
	}

	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", facts.SenderAddress)
	fmt.Printf("Subject: %s\n", facts.Subject)
	fmt.Printf("Body length: %d bytes\n", len(facts.Body))
	fmt.Printf("Links: %d\n", len(facts.URLs))

	if f.verbose {
		preview := facts.Body
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		fmt.Printf("\nBody preview:\n%s\n", preview)
	}

	fmt.Printf("\n=== Analysis ===\n")
	startTime := time.Now()
	verdict, err := f.service.ScanEmail(ctx, facts, core.ScanContext{Source: "cli"})
	if err != nil {
		f.logger.Error("Failed to scan email", zap.Error(err))
		fmt.Printf("Error: %v\n", err)
		return nil, err
	}
	duration := time.Since(startTime)

	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Verdict: %s\n", verdict.Verdict)
	fmt.Printf("Confidence: %.2f%%\n", verdict.ConfidencePercent)
	fmt.Printf("Explanation: %s\n", verdict.Explanation)
	fmt.Printf("Recommended action: %s\n", verdict.RecommendedAction)
	if len(verdict.SuspiciousElements) > 0 {
		fmt.Printf("\nSuspicious elements:\n")
		for _, el := range verdict.SuspiciousElements {
			fmt.Printf("  [%s] %s: %s (%s)\n", el.Severity, el.Kind, el.Value, el.Reason)
		}
	}
	fmt.Printf("Processing time: %v\n", duration)

	return verdict, nil
}

// Start is a no-op for the CLI filter.
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter.
func (f *CliFilter) Stop() error {
	return nil
}
