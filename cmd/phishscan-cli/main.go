package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/core"
	"github.com/calder/phishscan/internal/di"
	"github.com/calder/phishscan/internal/ports"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run scans a single email from a file or stdin and prints the verdict
func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	llmAssist core.LLMAssist,
	classifier core.ClassifierOracle,
) error {
	defer logger.Sync()

	if flags.ModelStatus {
		return printModelStatus(classifier)
	}

	// Read email from file or stdin
	var emailReader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", flags.InputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	rawEmail, err := io.ReadAll(emailReader)
	if err != nil {
		logger.Fatal("Failed to read email", zap.Error(err))
	}

	verdict, err := emailFilter.ProcessEmail(context.Background(), rawEmail)
	if err != nil {
		logger.Fatal("Failed to scan email", zap.Error(err))
	}

	// Close any resources that need closing
	if closer, ok := llmAssist.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}

	// Exit non-zero when the email is judged phishing so shell pipelines
	// can act on the verdict.
	if verdict != nil && verdict.Verdict == core.VerdictPhishing {
		os.Exit(1)
	}
	return nil
}

// printModelStatus prints the classifier's self-description as JSON.
func printModelStatus(classifier core.ClassifierOracle) error {
	status, ok := classifier.(interface{ Status() map[string]interface{} })
	if !ok {
		return fmt.Errorf("classifier does not report status")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(status.Status())
}
