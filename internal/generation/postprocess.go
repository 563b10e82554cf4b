package generation

import (
	"strings"
	"unicode/utf8"

	"github.com/recast/recast/internal/prompt"
)

// TruncationMarker is appended to text cut at a platform limit.
const TruncationMarker = "..."

// Truncate shortens s to at most limit runes. When s is cut, the result is
// exactly limit runes long and ends with TruncationMarker.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	markerLen := utf8.RuneCountInString(TruncationMarker)
	if limit <= markerLen {
		return string([]rune(s)[:limit])
	}
	runes := []rune(s)
	return string(runes[:limit-markerLen]) + TruncationMarker
}

// Clean removes prompt scaffolding a model may echo back and trims space.
func Clean(text string) string {
	if i := strings.LastIndex(text, prompt.RepurposedMarker); i >= 0 {
		text = text[i+len(prompt.RepurposedMarker):]
	}
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, prompt.OriginalMarker) {
		// The model repeated the input block without producing output.
		return ""
	}
	return text
}

// SplitPosts splits multi-variant output on prompt.PostSeparator,
// dropping empty fragments.
func SplitPosts(text string) []string {
	parts := strings.Split(text, prompt.PostSeparator)
	posts := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			posts = append(posts, part)
		}
	}
	return posts
}
