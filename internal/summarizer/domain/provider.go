// Package domain defines the AI provider surface used to generate summaries.
package domain

import (
	"context"
	"errors"

	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

var (
	ErrProviderNotFound  = errors.New("provider_not_found")
	ErrGenerationFailed  = errors.New("generation_failed")
	ErrEmptyTranscript   = errors.New("empty_transcript")
	ErrProviderNotReady  = errors.New("provider_not_configured")
)

// Request carries everything a provider needs to summarize one video.
type Request struct {
	Title      string
	Transcript string
	Length     videodomain.SummaryLength
}

// Chapter is a named section of the video derived by the model.
type Chapter struct {
	Title string  `json:"title"`
	Start float64 `json:"start"`
}

// Result is a provider's generated summary plus cost metadata.
type Result struct {
	Summary      string    `json:"summary"`
	KeyPoints    []string  `json:"key_points"`
	Chapters     []Chapter `json:"chapters"`
	Tags         []string  `json:"tags"`
	Model        string    `json:"-"`
	InputTokens  int       `json:"-"`
	OutputTokens int       `json:"-"`
	CostMicros   int64     `json:"-"`
}

// Provider is one AI backend (openai, anthropic, google).
type Provider interface {
	Name() videodomain.Provider
	Summarize(ctx context.Context, req Request) (*Result, error)
}
