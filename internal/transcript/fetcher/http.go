// Package fetcher talks to the external transcript extraction service.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/briefly-app/briefly/internal/transcript/domain"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

const defaultTimeout = 30 * time.Second

type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

type transcriptResponse struct {
	VideoID  string `json:"video_id"`
	Text     string `json:"text"`
	Language string `json:"language"`
	Source   string `json:"source"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Error string `json:"error"`
}

func (f *HTTPFetcher) Fetch(ctx context.Context, videoID string) (*domain.FetchResult, error) {
	if f == nil || f.baseURL == "" {
		return nil, fmt.Errorf("%w: transcript service not configured", domain.ErrTranscriptFetch)
	}

	endpoint := fmt.Sprintf("%s/api/v1/transcript?video_id=%s", f.baseURL, url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTranscriptFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTranscriptFetch, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTranscriptFetch, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNoTranscript
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrTranscriptFetch, resp.StatusCode)
	}

	var parsed transcriptResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTranscriptFetch, err)
	}
	if strings.TrimSpace(parsed.Text) == "" {
		return nil, domain.ErrNoTranscript
	}

	result := &domain.FetchResult{
		Text:     parsed.Text,
		Language: parsed.Language,
		Source:   parseSource(parsed.Source),
	}
	for _, seg := range parsed.Segments {
		result.Segments = append(result.Segments, videodomain.TranscriptSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}
	return result, nil
}

func parseSource(raw string) videodomain.TranscriptSource {
	switch videodomain.TranscriptSource(strings.TrimSpace(raw)) {
	case videodomain.TranscriptSourceManual:
		return videodomain.TranscriptSourceManual
	case videodomain.TranscriptSourceGenerated:
		return videodomain.TranscriptSourceGenerated
	default:
		return videodomain.TranscriptSourceAuto
	}
}
