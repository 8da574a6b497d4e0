package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/briefly-app/briefly/internal/summarizer/adapters"
	"github.com/briefly-app/briefly/internal/summarizer/domain"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

const defaultModel = openai.GPT4oMini

// per-million-token prices in micro-dollars
const (
	inputCostMicros  = 150_000
	outputCostMicros = 600_000
)

type Provider struct {
	client *openai.Client
	model  string
}

func New(apiKey string) *Provider {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	return &Provider{
		client: openai.NewClient(apiKey),
		model:  defaultModel,
	}
}

func (p *Provider) Name() videodomain.Provider {
	return videodomain.ProviderOpenAI
}

func (p *Provider) Summarize(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, domain.ErrEmptyTranscript
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: adapters.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: adapters.BuildUserPrompt(req),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", domain.ErrGenerationFailed)
	}

	result, err := adapters.ParseResult(resp.Choices[len(resp.Choices)-1].Message.Content)
	if err != nil {
		return nil, err
	}

	result.Model = resp.Model
	result.InputTokens = resp.Usage.PromptTokens
	result.OutputTokens = resp.Usage.CompletionTokens
	result.CostMicros = int64(resp.Usage.PromptTokens)*inputCostMicros/1_000_000 +
		int64(resp.Usage.CompletionTokens)*outputCostMicros/1_000_000
	return result, nil
}
