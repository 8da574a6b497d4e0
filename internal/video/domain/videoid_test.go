package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "raw id", raw: "dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "raw id with whitespace", raw: "  dQw4w9WgXcQ ", want: "dQw4w9WgXcQ"},
		{name: "watch url", raw: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "watch url with extra params", raw: "https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s&list=PL1", want: "dQw4w9WgXcQ"},
		{name: "short link", raw: "https://youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "short link with query", raw: "https://youtu.be/dQw4w9WgXcQ?si=abc", want: "dQw4w9WgXcQ"},
		{name: "shorts", raw: "https://www.youtube.com/shorts/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "embed", raw: "https://www.youtube.com/embed/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "live", raw: "https://www.youtube.com/live/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "mobile", raw: "https://m.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "music", raw: "https://music.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{name: "id with dash and underscore", raw: "a-b_c1234Xy", want: "a-b_c1234Xy"},

		{name: "empty", raw: "", wantErr: true},
		{name: "whitespace only", raw: "   ", wantErr: true},
		{name: "too short", raw: "dQw4w9WgXc", wantErr: true},
		{name: "too long", raw: "dQw4w9WgXcQQ", wantErr: true},
		{name: "bad characters", raw: "dQw4w9WgXc!", wantErr: true},
		{name: "unrelated url", raw: "https://vimeo.com/123456789", wantErr: true},
		{name: "watch url without v", raw: "https://www.youtube.com/watch?list=PL1", wantErr: true},
		{name: "channel url", raw: "https://www.youtube.com/@somechannel", wantErr: true},
		{name: "bad id in short link", raw: "https://youtu.be/tooshort", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVideoID(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidVideoID)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalURL(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", CanonicalURL("dQw4w9WgXcQ"))
}
