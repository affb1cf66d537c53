package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/avogel/teamap/internal/domain"
)

const prompt = `You are a tea sommelier. Describe the expected tasting notes for
the following Chinese tea in 2-3 sentences of plain prose. Mention aroma,
flavor, and mouthfeel. Do not use bullet points or headings.

Tea: %s
Type: %s%s`

type AnthropicSuggester struct {
	client *anthropic.Client
	model  string
}

// Option customizes the underlying API client. Used by tests to point
// the client at a local server.
type Option = anthropic.ClientOption

func NewAnthropicSuggester(apiKey, model string, opts ...Option) *AnthropicSuggester {
	return &AnthropicSuggester{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

func (s *AnthropicSuggester) TastingNotes(ctx context.Context, tea domain.Tea) (string, error) {
	resp, err := s.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(s.model),
		MaxTokens: 512,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(buildPrompt(tea)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate tasting notes: %w", err)
	}

	text := strings.TrimSpace(resp.GetFirstContentText())
	if text == "" {
		return "", fmt.Errorf("empty suggestion for tea %q", tea.Name)
	}
	return text, nil
}

func buildPrompt(tea domain.Tea) string {
	var origin strings.Builder
	if tea.ChineseName != "" {
		fmt.Fprintf(&origin, "\nChinese name: %s", tea.ChineseName)
	}
	if tea.Province != "" {
		fmt.Fprintf(&origin, "\nOrigin: %s", tea.Province)
		if tea.Region != "" {
			fmt.Fprintf(&origin, ", %s", tea.Region)
		}
	}
	if tea.Elevation != nil {
		fmt.Fprintf(&origin, "\nElevation: %.0f m", *tea.Elevation)
	}
	return fmt.Sprintf(prompt, tea.Name, tea.Type, origin.String())
}
