// Package domain defines the transcript cache contract.
package domain

import (
	"context"
	"errors"

	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

var (
	// ErrTranscriptFetch wraps any upstream failure fetching a transcript.
	ErrTranscriptFetch = errors.New("transcript fetch failed")
	// ErrNoTranscript means the video exists but has no captions at all.
	ErrNoTranscript = errors.New("video has no transcript")
)

// FetchResult is what the external transcript service returns.
type FetchResult struct {
	Text     string
	Language string
	Source   videodomain.TranscriptSource
	Segments []videodomain.TranscriptSegment
}

// Fetcher retrieves a transcript from the upstream captions service.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) (*FetchResult, error)
}

// Service is the read-through transcript cache.
type Service interface {
	// GetOrFetch returns the stored transcript for the video, fetching
	// and persisting it on a cache miss. cached reports whether the
	// transcript came from the database.
	GetOrFetch(ctx context.Context, video *videodomain.Video) (transcript *videodomain.Transcript, cached bool, err error)
}
