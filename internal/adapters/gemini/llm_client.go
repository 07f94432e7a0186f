package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/calder/phishscan/internal/core"
	"github.com/calder/phishscan/internal/utils"
)

// AssistClient implements core.LLMAssist using Google Gemini.
type AssistClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	promptFormat  string
}

// assistResponse is the structured JSON the model is instructed to emit.
type assistResponse struct {
	Verdict        string   `json:"verdict"`
	Confidence     float64  `json:"confidence"`
	Reasons        []string `json:"reasons"`
	Recommendation string   `json:"recommendation"`
}

// NewAssistClient creates a new Gemini assist client.
func NewAssistClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*AssistClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &AssistClient{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat:  assistPromptFormat,
	}, nil
}

const assistPromptFormat = `You are a phishing detection assistant. Analyze the following email text and judge whether it is a phishing attempt.
Respond with a JSON object containing:
- verdict: one of "phishing", "suspicious" or "safe"
- confidence: number between 0 and 1 (how confident you are in the verdict)
- reasons: array of short strings naming the concrete signals you saw
- recommendation: one short sentence of advice for the recipient

Email text:
%s

Respond only with the JSON object and nothing else.`

// Close closes the underlying Gemini client.
func (c *AssistClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Analyze asks Gemini for a second opinion. Any failure is reported as a
// disabled result so the fusion engine falls back to local signals.
func (c *AssistClient) Analyze(ctx context.Context, text string) core.LlmResult {
	prompt := fmt.Sprintf(c.promptFormat, c.textProcessor.ProcessText(text, c.maxBodySize))

	var responseText string
	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return retry.RetryableError(err)
		}
		if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			return retry.RetryableError(fmt.Errorf("empty response from Gemini"))
		}
		responseText = fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
		return nil
	})
	if err != nil {
		c.logger.Warn("Gemini analysis unavailable",
			zap.String("model", c.modelName),
			zap.Error(err))
		return core.LlmResult{}
	}

	parsed, err := parseAssistResponse(responseText)
	if err != nil {
		c.logger.Warn("Failed to parse Gemini response",
			zap.String("model", c.modelName),
			zap.Error(err))
		return core.LlmResult{}
	}
	return parsed
}

// parseAssistResponse tolerates prose around the JSON object; models
// occasionally wrap their answer despite the instruction not to.
func parseAssistResponse(responseText string) (core.LlmResult, error) {
	var resp assistResponse
	if err := json.Unmarshal([]byte(responseText), &resp); err != nil {
		jsonStr, ok := extractJSONObject(responseText)
		if !ok {
			return core.LlmResult{}, fmt.Errorf("no JSON object in response: %w", err)
		}
		if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
			return core.LlmResult{}, fmt.Errorf("failed to parse response JSON: %w", err)
		}
	}
	return core.LlmResult{
		Enabled:        true,
		Verdict:        verdictFromString(resp.Verdict),
		Confidence:     clamp01(resp.Confidence),
		Reasons:        resp.Reasons,
		Recommendation: resp.Recommendation,
	}, nil
}

func extractJSONObject(s string) (string, bool) {
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			start = i
			break
		}
	}
	for i := len(s) - 1; i > start; i-- {
		if s[i] == '}' {
			if start >= 0 {
				return s[start : i+1], true
			}
			break
		}
	}
	return "", false
}

func verdictFromString(s string) core.Verdict {
	switch s {
	case "phishing":
		return core.VerdictPhishing
	case "safe":
		return core.VerdictSafe
	default:
		return core.VerdictSuspicious
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
