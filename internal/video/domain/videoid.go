package domain

import (
	"net/url"
	"strings"
)

// ParseVideoID extracts the canonical 11-character video id from a raw id or
// any of the common YouTube URL shapes (watch, youtu.be, shorts, embed).
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidVideoID
	}

	if isVideoID(raw) {
		return raw, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidVideoID
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	switch host {
	case "youtu.be":
		if id := firstPathSegment(parsed.Path); isVideoID(id) {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := parsed.Query().Get("v"); isVideoID(id) {
			return id, nil
		}
		segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if len(segments) == 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live") {
			if isVideoID(segments[1]) {
				return segments[1], nil
			}
		}
	}

	return "", ErrInvalidVideoID
}

// CanonicalURL rebuilds the watch URL for a video id.
func CanonicalURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

func firstPathSegment(path string) string {
	trimmed := strings.Trim(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}

func isVideoID(s string) bool {
	if len(s) != 11 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
