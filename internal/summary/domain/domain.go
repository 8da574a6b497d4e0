// Package domain defines the summary orchestration contract: the single
// entry point that ties the video cache, credit ledger, transcript cache and
// AI providers together.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

var (
	// ErrGenerationInFlight means another request holds the generation
	// claim for the same (video, provider, length).
	ErrGenerationInFlight = errors.New("generation_in_flight")
)

// Request is one user-facing summarize call.
type Request struct {
	UserID   snowflake.ID
	VideoRaw string // raw id or any YouTube URL shape
	Provider videodomain.Provider
	Length   videodomain.SummaryLength
}

// Result is the successful response. Cached reports whether the summary was
// served from the shared cache; CreditsRemaining is the caller's balance
// after any charge.
type Result struct {
	Video            *videodomain.Video
	Summary          *videodomain.Summary
	Cached           bool
	CreditsRemaining int
}

type Service interface {
	Summarize(ctx context.Context, req Request) (*Result, error)

	// Transcript returns the cached transcript for a video id, fetching it
	// if absent. Read-only with respect to credits.
	Transcript(ctx context.Context, videoRaw string) (*videodomain.Transcript, error)
}
