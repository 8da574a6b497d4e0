package google

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
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-1.5-flash"
)

// per-million-token prices in micro-dollars
const (
	inputCostMicros  = 75_000
	outputCostMicros = 300_000
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
	return videodomain.ProviderGoogle
}

type generateRequest struct {
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Contents          []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) Summarize(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, domain.ErrEmptyTranscript
	}

	body, err := json.Marshal(generateRequest{
		SystemInstruction: &content{
			Parts: []part{{Text: adapters.SystemPrompt}},
		},
		Contents: []content{
			{Role: "user", Parts: []part{{Text: adapters.BuildUserPrompt(req)}}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, p.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrGenerationFailed, parsed.Error.Message)
		}
		return nil, fmt.Errorf("%w: status %d", domain.ErrGenerationFailed, resp.StatusCode)
	}
	if len(parsed.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates in response", domain.ErrGenerationFailed)
	}

	var text strings.Builder
	for _, piece := range parsed.Candidates[0].Content.Parts {
		text.WriteString(piece.Text)
	}

	result, err := adapters.ParseResult(text.String())
	if err != nil {
		return nil, err
	}

	result.Model = p.model
	result.InputTokens = parsed.UsageMetadata.PromptTokenCount
	result.OutputTokens = parsed.UsageMetadata.CandidatesTokenCount
	result.CostMicros = int64(parsed.UsageMetadata.PromptTokenCount)*inputCostMicros/1_000_000 +
		int64(parsed.UsageMetadata.CandidatesTokenCount)*outputCostMicros/1_000_000
	return result, nil
}
