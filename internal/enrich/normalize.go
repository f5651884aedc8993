package enrich

import (
	"regexp"
	"strings"
)

// Track labels arrive with upload noise ("(Official Video)", "[Remix]",
// "feat. X") that breaks lookups and splits the cache. The fixed pattern set
// below mirrors what the playback sources actually emit.
var cleanupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[.*?\]`),
	regexp.MustCompile(`\(from .*?\)`),
	regexp.MustCompile(`\(Official.*?\)`),
	regexp.MustCompile(`\(feat\..*?\)`),
	regexp.MustCompile(`\(ft\..*?\)`),
	regexp.MustCompile(`\(Explicit\)`),
	regexp.MustCompile(`\(Audio\)`),
	regexp.MustCompile(`\(Lyrics\)`),
}

// CleanQuery strips qualifier noise from a title/artist pair. A
// "Artist - Title" prefix in the title wins over the reported artist, which
// is usually the uploader on user-submitted sources.
func CleanQuery(title, artist string) (string, string) {
	for _, p := range cleanupPatterns {
		title = p.ReplaceAllString(title, "")
	}

	if strings.Contains(title, " - ") {
		parts := strings.SplitN(title, " - ", 2)
		if parts[1] != "" {
			artist = parts[0]
			title = parts[1]
		}
	}

	return strings.TrimSpace(title), strings.TrimSpace(artist)
}

// CacheKey folds trivially different labels of the same track onto one
// entry: cleaned, lowercased, "title::artist".
func CacheKey(title, artist string) string {
	t, a := CleanQuery(title, artist)
	return strings.ToLower(t) + "::" + strings.ToLower(a)
}
