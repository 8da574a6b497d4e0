package domain

import "errors"

var (
	ErrNotFound           = errors.New("video_not_found")
	ErrSummaryNotFound    = errors.New("summary_not_found")
	ErrTranscriptNotFound = errors.New("transcript_not_found")
	ErrInvalidProvider    = errors.New("invalid_provider")
	ErrInvalidLength      = errors.New("invalid_length")
	ErrInvalidVideoID     = errors.New("invalid_video_id")
)
