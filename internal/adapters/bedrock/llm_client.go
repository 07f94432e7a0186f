package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/core"
	"github.com/calder/phishscan/internal/utils"
)

// AssistClient implements core.LLMAssist using Amazon Bedrock.
type AssistClient struct {
	client        *bedrockruntime.Client
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
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

// NewAssistClient creates a new Bedrock assist client.
func NewAssistClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *AssistClient {
	return &AssistClient{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `You are a phishing detection assistant. Analyze the following email text and judge whether it is a phishing attempt.
Respond with a JSON object containing:
- verdict: one of "phishing", "suspicious" or "safe"
- confidence: number between 0 and 1 (how confident you are in the verdict)
- reasons: array of short strings naming the concrete signals you saw
- recommendation: one short sentence of advice for the recipient

Email text:
%s

Respond only with the JSON object and nothing else.`,
	}
}

// Analyze asks Bedrock for a second opinion. Any failure is reported as a
// disabled result so the fusion engine falls back to local signals.
func (c *AssistClient) Analyze(ctx context.Context, text string) core.LlmResult {
	prompt := fmt.Sprintf(c.promptFormat, c.textProcessor.ProcessText(text, c.maxBodySize))

	payload, err := c.requestPayload(prompt)
	if err != nil {
		c.logger.Warn("Failed to build Bedrock payload", zap.Error(err))
		return core.LlmResult{}
	}

	var body []byte
	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     &c.modelID,
			Body:        payload,
			Accept:      aws.String("application/json"),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		c.logger.Warn("Bedrock analysis unavailable",
			zap.String("model", c.modelID),
			zap.Error(err))
		return core.LlmResult{}
	}

	responseText, err := c.responseText(body)
	if err != nil {
		c.logger.Warn("Failed to decode Bedrock response",
			zap.String("model", c.modelID),
			zap.Error(err))
		return core.LlmResult{}
	}

	parsed, err := parseAssistResponse(responseText)
	if err != nil {
		c.logger.Warn("Failed to parse Bedrock response",
			zap.String("model", c.modelID),
			zap.Error(err))
		return core.LlmResult{}
	}
	return parsed
}

// requestPayload builds the model-family specific invocation body.
func (c *AssistClient) requestPayload(prompt string) ([]byte, error) {
	switch {
	case c.isAnthropicModel():
		return json.Marshal(map[string]interface{}{
			"prompt":               prompt,
			"max_tokens_to_sample": c.maxTokens,
			"temperature":          c.temperature,
			"top_p":                c.topP,
		})
	case c.isAmazonTitanModel():
		return json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	default:
		return json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
}

// responseText extracts the generated text from the model-family
// specific response envelope.
func (c *AssistClient) responseText(body []byte) (string, error) {
	switch {
	case c.isAnthropicModel():
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	case c.isAmazonTitanModel():
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	default:
		var genericResp struct {
			Output   string `json:"output"`
			Text     string `json:"text"`
			Response string `json:"response"`
		}
		if err := json.Unmarshal(body, &genericResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
		}
		switch {
		case genericResp.Output != "":
			return genericResp.Output, nil
		case genericResp.Text != "":
			return genericResp.Text, nil
		case genericResp.Response != "":
			return genericResp.Response, nil
		default:
			return string(body), nil
		}
	}
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

func (c *AssistClient) isAnthropicModel() bool {
	return strings.HasPrefix(c.modelID, "anthropic.claude")
}

func (c *AssistClient) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}
