package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/briefly-app/briefly/internal/summarizer/domain"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

const SystemPrompt = `You are a video summarization assistant. You receive the title and transcript of a YouTube video and produce a structured summary.
Respond with a single JSON object and nothing else, using this shape:
{"summary": "...", "key_points": ["..."], "chapters": [{"title": "...", "start": "mm:ss"}], "tags": ["..."]}`

func lengthHint(length videodomain.SummaryLength) string {
	switch length {
	case videodomain.LengthShort:
		return "Keep the summary to 2-3 sentences and at most 3 key points."
	case videodomain.LengthLong:
		return "Write a detailed summary of several paragraphs, up to 10 key points, and chapters covering the whole video."
	default:
		return "Write a summary of one solid paragraph with 4-6 key points."
	}
}

// BuildUserPrompt renders the per-request prompt. The transcript is
// truncated to keep the request inside provider context windows.
func BuildUserPrompt(req domain.Request) string {
	const maxTranscriptChars = 48_000

	transcript := req.Transcript
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[:maxTranscriptChars]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\n", req.Title)
	fmt.Fprintf(&b, "%s\n\n", lengthHint(req.Length))
	fmt.Fprintf(&b, "Transcript:\n%s", transcript)
	return b.String()
}

type rawResult struct {
	Summary   string           `json:"summary"`
	KeyPoints []string         `json:"key_points"`
	Chapters  []domain.Chapter `json:"chapters"`
	Tags      []string         `json:"tags"`
}

// ParseResult extracts the structured summary from a model response.
// Providers occasionally wrap the JSON in markdown fences or prose, so
// parsing starts at the first brace and ends at the last.
func ParseResult(content string) (*domain.Result, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", domain.ErrGenerationFailed)
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	if strings.TrimSpace(raw.Summary) == "" {
		return nil, fmt.Errorf("%w: empty summary", domain.ErrGenerationFailed)
	}

	return &domain.Result{
		Summary:   strings.TrimSpace(raw.Summary),
		KeyPoints: raw.KeyPoints,
		Chapters:  raw.Chapters,
		Tags:      raw.Tags,
	}, nil
}
