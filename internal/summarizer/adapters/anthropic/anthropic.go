package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/briefly-app/briefly/internal/summarizer/adapters"
	"github.com/briefly-app/briefly/internal/summarizer/domain"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultModel   = "claude-3-5-haiku-latest"
	apiVersion     = "2023-06-01"
	maxTokens      = 4096
)

// per-million-token prices in micro-dollars
const (
	inputCostMicros  = 800_000
	outputCostMicros = 4_000_000
)

type Provider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func New(apiKey string) *Provider {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	return &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *Provider) Name() videodomain.Provider {
	return videodomain.ProviderAnthropic
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) Summarize(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, domain.ErrEmptyTranscript
	}

	body, err := json.Marshal(messagesRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		System:    adapters.SystemPrompt,
		Messages: []message{
			{Role: "user", Content: adapters.BuildUserPrompt(req)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrGenerationFailed, parsed.Error.Message)
		}
		return nil, fmt.Errorf("%w: status %d", domain.ErrGenerationFailed, resp.StatusCode)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	result, err := adapters.ParseResult(text.String())
	if err != nil {
		return nil, err
	}

	result.Model = parsed.Model
	result.InputTokens = parsed.Usage.InputTokens
	result.OutputTokens = parsed.Usage.OutputTokens
	result.CostMicros = int64(parsed.Usage.InputTokens)*inputCostMicros/1_000_000 +
		int64(parsed.Usage.OutputTokens)*outputCostMicros/1_000_000
	return result, nil
}
