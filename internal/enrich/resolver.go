// Package enrich resolves best-effort track metadata from external catalogs:
// cover art, synced lyrics and artist details. Lookups are cached per
// normalized track identity, including misses, and concurrent requests for
// the same identity collapse into one outbound call.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	simplejson "github.com/bitly/go-simplejson"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"github.com/evictbot/playerlink/internal/config"
	"github.com/evictbot/playerlink/pkg/retrier"
)

// Resolver looks up artwork, lyrics and artist info. All methods are
// best-effort: an empty or nil result means nothing is available, never an
// error the caller has to branch on. Safe for concurrent use.
type Resolver struct {
	artworkURL  string
	metadataURL string
	metadataKey string

	client *http.Client
	lim    *retrier.Limiter
	retry  retrier.Config
	log    zerolog.Logger

	group singleflight.Group

	mu      sync.Mutex
	artwork map[string]string        // "" is a cached miss
	lyrics  map[string]*LyricsResult // nil is a cached miss
	artists map[string]*ArtistInfo   // nil is a cached miss
}

// NewResolver builds a resolver from the service configuration.
func NewResolver(cfg *config.Config, log zerolog.Logger) *Resolver {
	return &Resolver{
		artworkURL:  cfg.ArtworkURL,
		metadataURL: cfg.MetadataURL,
		metadataKey: cfg.MetadataKey,
		client:      &http.Client{Timeout: cfg.EnrichTimeout},
		lim:         retrier.NewLimiter(5, 1, 20),
		retry:       retrier.Defaults(),
		log:         log.With().Str("component", "enrich").Logger(),
		artwork:     make(map[string]string),
		lyrics:      make(map[string]*LyricsResult),
		artists:     make(map[string]*ArtistInfo),
	}
}

// Artwork returns a cover art URL for the track, or "" when no art could be
// resolved. Misses are cached so a track without art is looked up once.
func (r *Resolver) Artwork(ctx context.Context, title, artist string) string {
	key := CacheKey(title, artist)

	r.mu.Lock()
	if art, ok := r.artwork[key]; ok {
		r.mu.Unlock()
		return art
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do("artwork:"+key, func() (any, error) {
		art := r.fetchArtwork(ctx, title, artist)
		r.mu.Lock()
		r.artwork[key] = art
		r.mu.Unlock()
		return art, nil
	})
	if err != nil {
		return ""
	}
	return v.(string)
}

// Lyrics returns synced lyrics for the track, or nil when none exist.
func (r *Resolver) Lyrics(ctx context.Context, title, artist string) *LyricsResult {
	key := CacheKey(title, artist)

	r.mu.Lock()
	if res, ok := r.lyrics[key]; ok {
		r.mu.Unlock()
		return res
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do("lyrics:"+key, func() (any, error) {
		res := r.fetchLyrics(ctx, title, artist)
		r.mu.Lock()
		r.lyrics[key] = res
		r.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return nil
	}
	return v.(*LyricsResult)
}

// ArtistInfo returns extended artist metadata, or nil when none exists. The
// cache key is the artist alone, so tracks by one artist share the entry.
func (r *Resolver) ArtistInfo(ctx context.Context, title, artist string) *ArtistInfo {
	cleanTitle, cleanArtist := CleanQuery(title, artist)
	if cleanArtist == "" {
		return nil
	}
	key := CacheKey("", cleanArtist)

	r.mu.Lock()
	if info, ok := r.artists[key]; ok {
		r.mu.Unlock()
		return info
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do("artist:"+key, func() (any, error) {
		info := r.fetchArtistInfo(ctx, cleanTitle, cleanArtist)
		r.mu.Lock()
		r.artists[key] = info
		r.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return nil
	}
	return v.(*ArtistInfo)
}

// fetchArtwork queries the catalog search endpoint and picks the first
// result's large album cover.
func (r *Resolver) fetchArtwork(ctx context.Context, title, artist string) string {
	cleanTitle, cleanArtist := CleanQuery(title, artist)
	query := cleanTitle
	if cleanArtist != "" {
		query = cleanArtist + " " + cleanTitle
	}
	endpoint := r.artworkURL + "?q=" + url.QueryEscape(query)

	body, err := r.get(ctx, endpoint)
	if err != nil {
		r.log.Debug().Err(err).Str("title", cleanTitle).Msg("artwork lookup failed")
		return ""
	}

	js, err := simplejson.NewJson(body)
	if err != nil {
		r.log.Debug().Err(err).Msg("artwork response not json")
		return ""
	}
	return js.Get("data").GetIndex(0).Get("album").Get("cover_big").MustString()
}

type lyricsResponse struct {
	Lines    []LyricLine    `json:"lyrics"`
	RichSync []RichSyncLine `json:"richsync"`
}

// fetchLyrics queries the lyrics endpoint. Blank filler lines are dropped.
func (r *Resolver) fetchLyrics(ctx context.Context, title, artist string) *LyricsResult {
	cleanTitle, cleanArtist := CleanQuery(title, artist)

	q := url.Values{}
	q.Set("title", cleanTitle)
	q.Set("artist", cleanArtist)
	if r.metadataKey != "" {
		q.Set("key", r.metadataKey)
	}
	endpoint := r.metadataURL + "/lyrics?" + q.Encode()

	body, err := r.get(ctx, endpoint)
	if err != nil {
		r.log.Debug().Err(err).Str("title", cleanTitle).Msg("lyrics lookup failed")
		return nil
	}

	var resp lyricsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		r.log.Debug().Err(err).Msg("lyrics response not json")
		return nil
	}
	if len(resp.Lines) == 0 && len(resp.RichSync) == 0 {
		return nil
	}

	lines := lo.Filter(resp.Lines, func(l LyricLine, _ int) bool {
		return l.Text != ""
	})
	return &LyricsResult{Lines: lines, RichSync: resp.RichSync}
}

// fetchArtistInfo queries the song endpoint, which carries the artist-level
// listeners, tags and bio alongside the track match.
func (r *Resolver) fetchArtistInfo(ctx context.Context, title, artist string) *ArtistInfo {
	q := url.Values{}
	q.Set("title", title)
	q.Set("artist", artist)
	if r.metadataKey != "" {
		q.Set("key", r.metadataKey)
	}
	endpoint := r.metadataURL + "/song?" + q.Encode()

	body, err := r.get(ctx, endpoint)
	if err != nil {
		r.log.Debug().Err(err).Str("artist", artist).Msg("artist lookup failed")
		return nil
	}

	js, err := simplejson.NewJson(body)
	if err != nil {
		r.log.Debug().Err(err).Msg("artist response not json")
		return nil
	}

	info := &ArtistInfo{
		Name:      js.Get("name").MustString(artist),
		Listeners: js.Get("listeners").MustInt64(),
		Bio:       js.Get("bio").MustString(),
	}
	for _, tag := range js.Get("tags").MustStringArray() {
		if tag != "" {
			info.Tags = append(info.Tags, tag)
		}
	}
	if info.Listeners == 0 && info.Bio == "" && len(info.Tags) == 0 {
		return nil
	}
	return info
}

// get performs a rate-limited GET with bounded retries. A 404 is a definitive
// miss and is not retried; 5xx and transport errors are.
func (r *Resolver) get(ctx context.Context, endpoint string) ([]byte, error) {
	var body []byte
	err := retrier.Do(ctx, r.lim, r.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return &retrier.Permanent{Err: err}
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusNotFound:
			return &retrier.Permanent{Err: fmt.Errorf("not found")}
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("status %d", resp.StatusCode)
		default:
			return &retrier.Permanent{Err: fmt.Errorf("status %d", resp.StatusCode)}
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
