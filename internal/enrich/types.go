package enrich

// LyricLine is one plain synced lyrics line.
type LyricLine struct {
	Text     string `json:"text"`
	OffsetMs int64  `json:"milliseconds"`
}

// LyricWord is one word inside a rich-sync line, offset relative to the
// line start.
type LyricWord struct {
	Text     string `json:"text"`
	OffsetMs int64  `json:"offset"`
}

// RichSyncLine carries word-level timing for karaoke-style rendering.
type RichSyncLine struct {
	StartMs int64       `json:"startTime"`
	EndMs   int64       `json:"endTime"`
	Words   []LyricWord `json:"words"`
}

// LyricsResult is immutable once fetched; it is replaced wholesale on track
// change.
type LyricsResult struct {
	Lines    []LyricLine    `json:"lines"`
	RichSync []RichSyncLine `json:"rich_sync,omitempty"`
}

// HasRichSync reports whether word-level timings are available.
func (l *LyricsResult) HasRichSync() bool {
	return l != nil && len(l.RichSync) > 0
}

// ArtistInfo is the extended metadata shown next to the now-playing artist.
type ArtistInfo struct {
	Name      string   `json:"name"`
	Listeners int64    `json:"listeners"`
	Tags      []string `json:"tags"`
	Bio       string   `json:"bio"`
}
