// Package openai implements the classifier and narrator on the OpenAI chat
// completions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/aliuyar1234/feedbackiq/internal/ai"
	"github.com/aliuyar1234/feedbackiq/internal/validation"
)

// MaxInsightItems bounds the prompt size of a weekly summary.
const MaxInsightItems = 50

const classifyPrompt = `You are a feedback analysis assistant. Analyze customer feedback and return a JSON object with:
- topic: A single category (e.g., "Pricing", "UX", "Bugs", "Features", "Support", "Performance")
- sentiment: "positive", "neutral", or "negative"
- summary: A concise 1-2 sentence summary
- keywords: Array of 3-5 key terms from the feedback

Return ONLY valid JSON, no markdown formatting.`

const narratePrompt = "You are a customer insights analyst. Generate a concise weekly summary highlighting key trends, patterns, and actionable insights from customer feedback."

type Provider struct {
	client *openai.Client
	model  string
}

func NewProvider(apiKey, model string) *Provider {
	return NewProviderWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewProviderWithConfig allows pointing the client at another base URL.
func NewProviderWithConfig(cfg openai.ClientConfig, model string) *Provider {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Provider{client: openai.NewClientWithConfig(cfg), model: model}
}

func (p *Provider) Classify(ctx context.Context, text string) (ai.Analysis, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifyPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Analyze this feedback: %q", text)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return ai.Analysis{}, mapError(ctx, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return ai.Analysis{}, fmt.Errorf("%w: empty completion", ai.ErrInvalidResponse)
	}

	var out struct {
		Topic     string   `json:"topic"`
		Sentiment string   `json:"sentiment"`
		Summary   string   `json:"summary"`
		Keywords  []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return ai.Analysis{}, fmt.Errorf("%w: %v", ai.ErrInvalidResponse, err)
	}

	return ai.Analysis{
		Topic:     out.Topic,
		Sentiment: ai.ParseSentiment(out.Sentiment),
		Summary:   out.Summary,
		Keywords:  out.Keywords,
	}, nil
}

func (p *Provider) SummarizeWeek(ctx context.Context, items []ai.InsightItem) (string, error) {
	if len(items) > MaxInsightItems {
		items = items[:MaxInsightItems]
	}

	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i+1, it.Topic, it.Sentiment, validation.Truncate(it.Text, 100))
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: narratePrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(
				"Based on this week's feedback (%d items), generate a 3-4 paragraph weekly insight summary:\n\n%s",
				len(items), b.String())},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", mapError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func mapError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ai.ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", ai.ErrProviderUnavailable, err)
}

var (
	_ ai.Classifier = (*Provider)(nil)
	_ ai.Narrator   = (*Provider)(nil)
)
