package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"medeasy/rx/domain"
)

const visionPrompt = `Read this medical prescription. Respond with strict JSON only, no prose:
{"confidence": <0..1 how legible and certain the reading is>,
 "extractedText": "<the full text you can read>",
 "suggestedItems": [{"name": "<medication with dosage>", "quantity": <integer units>}]}
Use an empty suggestedItems list when no medication can be read.`

// AnthropicMessager is the slice of the Anthropic client the analyzer uses.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicAnalyzer reads prescriptions with a Claude vision model.
type AnthropicAnalyzer struct {
	messages AnthropicMessager
	model    anthropic.Model
}

func NewAnthropicAnalyzer(apiKey string) (*AnthropicAnalyzer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicAnalyzer{messages: &c.Messages, model: anthropic.ModelClaudeSonnet4_20250514}, nil
}

func newAnthropicAnalyzerWith(m AnthropicMessager) *AnthropicAnalyzer {
	return &AnthropicAnalyzer{messages: m, model: anthropic.ModelClaudeSonnet4_20250514}
}

func (a *AnthropicAnalyzer) Analyze(ctx context.Context, imageRef string) (domain.AIAnalysisResult, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{anthropic.NewUserMessage(
			anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: imageRef}),
			anthropic.NewTextBlock(visionPrompt),
		)},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return domain.AIAnalysisResult{}, fmt.Errorf("anthropic vision call: %w", err)
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	raw := stripCodeFences(sb.String())
	if raw == "" {
		return domain.AIAnalysisResult{}, errors.New("anthropic vision returned no text")
	}
	return decodeResult([]byte(raw))
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
