// /internal/session/session.go
package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/evictbot/playerlink/internal/config"
	"github.com/evictbot/playerlink/internal/enrich"
)

// Enricher is the metadata lookup surface the session consumes. Results are
// best-effort: nil / empty means "no enrichment available", never an error
// the caller must handle.
type Enricher interface {
	Artwork(ctx context.Context, title, artist string) string
	Lyrics(ctx context.Context, title, artist string) *enrich.LyricsResult
	ArtistInfo(ctx context.Context, title, artist string) *enrich.ArtistInfo
}

// TrackRecorder receives each confirmed track start, e.g. for a
// recently-played history. Failures are the recorder's problem.
type TrackRecorder interface {
	Record(TrackSnapshot) error
}

// Options configures one guild session.
type Options struct {
	GuildID   string
	SocketURL string // base ws url, guild id is appended
	AuthToken string

	MaxRetries    int
	BackoffBase   time.Duration
	DialTimeout   time.Duration
	TickInterval  time.Duration
	EnrichTimeout time.Duration

	Enricher Enricher
	Recorder TrackRecorder
	Log      zerolog.Logger
}

// OptionsFromConfig maps the environment configuration onto session options.
func OptionsFromConfig(guildID string, cfg *config.Config) Options {
	return Options{
		GuildID:       guildID,
		SocketURL:     cfg.SocketURL,
		AuthToken:     cfg.AuthToken,
		MaxRetries:    cfg.MaxRetries,
		BackoffBase:   cfg.BackoffBase,
		DialTimeout:   cfg.DialTimeout,
		TickInterval:  cfg.TickInterval,
		EnrichTimeout: cfg.EnrichTimeout,
	}
}

// Session is the single point of contact for one guild's music view: a state
// container plus control methods, combining the connection controller, the
// reconciler and the enrichment resolver.
type Session struct {
	guildID  string
	conn     *Conn
	rec      *Reconciler
	enricher Enricher
	log      zerolog.Logger

	mu        sync.Mutex
	connected bool
	connErr   string
}

// New builds a session. Start must be called before any state arrives.
func New(opts Options) *Session {
	log := opts.Log.With().Str("guild", opts.GuildID).Logger()

	s := &Session{
		guildID:  opts.GuildID,
		enricher: opts.Enricher,
		log:      log,
	}

	var artwork ArtworkFunc
	if opts.Enricher != nil {
		artwork = opts.Enricher.Artwork
	}
	var onStart func(TrackSnapshot)
	if opts.Recorder != nil {
		rec := opts.Recorder
		onStart = func(t TrackSnapshot) {
			if err := rec.Record(t); err != nil {
				log.Warn().Err(err).Str("title", t.Title).Msg("history record failed")
			}
		}
	}

	s.rec = NewReconciler(ReconcilerOptions{
		Artwork:       artwork,
		OnTrackStart:  onStart,
		OnServerError: s.setConnError,
		TickInterval:  opts.TickInterval,
		EnrichTimeout: opts.EnrichTimeout,
	}, log)

	s.conn = NewConn(ConnOptions{
		URL:         sessionURL(opts.SocketURL, opts.GuildID, opts.AuthToken),
		MaxRetries:  opts.MaxRetries,
		BackoffBase: opts.BackoffBase,
		DialTimeout: opts.DialTimeout,
	}, s.rec.Apply, s.setStatus, log)
	s.rec.sender = s.conn

	return s
}

func sessionURL(base, guildID, token string) string {
	u := fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), guildID)
	if token != "" {
		u += "?auth=" + url.QueryEscape(token)
	}
	return u
}

// Start opens the connection and begins position interpolation. Safe to call
// while already running.
func (s *Session) Start() {
	s.conn.Start()
	s.rec.StartTicker()
}

// Stop is the total, idempotent teardown: connection, heartbeat, reconnects
// and the position ticker all end here. After Stop no state mutates, even if
// the old transport still has bytes in flight.
func (s *Session) Stop() {
	s.conn.Stop()
	s.rec.StopTicker()
}

// GuildID identifies which guild this session serves.
func (s *Session) GuildID() string { return s.guildID }

// State returns a read-only snapshot of the player state.
func (s *Session) State() PlayerState { return s.rec.State() }

// IsConnected reports transport health; collaborators disable controls when
// false.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// ConnectionError returns the persistent user-visible connection failure, or
// "" when healthy.
func (s *Session) ConnectionError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connErr
}

func (s *Session) setStatus(connected bool, errMsg string) {
	s.mu.Lock()
	s.connected = connected
	if connected {
		s.connErr = ""
	} else if errMsg != "" {
		s.connErr = errMsg
	}
	s.mu.Unlock()
}

func (s *Session) setConnError(msg string) {
	s.mu.Lock()
	s.connErr = msg
	s.mu.Unlock()
}

// Control methods: thin pass-throughs to the reconciler's command surface.
// Each returns whether the command was actually sent (false while
// disconnected; the command is silently dropped per the service contract).

func (s *Session) Play() bool                     { return s.rec.Play() }
func (s *Session) Pause() bool                    { return s.rec.Pause() }
func (s *Session) Skip() bool                     { return s.rec.Skip() }
func (s *Session) Seek(positionMs int64) bool     { return s.rec.Seek(positionMs) }
func (s *Session) SetVolume(volume int) bool      { return s.rec.SetVolume(volume) }
func (s *Session) ToggleShuffle() bool            { return s.rec.ToggleShuffle() }
func (s *Session) SetRepeat(mode RepeatMode) bool { return s.rec.SetRepeat(mode) }

// Lyrics lazily resolves lyrics for the now-playing track. nil without error
// means no lyrics are available.
func (s *Session) Lyrics(ctx context.Context) (*enrich.LyricsResult, error) {
	cur := s.rec.State().Current
	if cur == nil {
		return nil, ErrNoTrack
	}
	if s.enricher == nil {
		return nil, nil
	}
	return s.enricher.Lyrics(ctx, cur.Title, cur.Artist), nil
}

// ArtistInfo lazily resolves artist metadata for the now-playing track.
func (s *Session) ArtistInfo(ctx context.Context) (*enrich.ArtistInfo, error) {
	cur := s.rec.State().Current
	if cur == nil {
		return nil, ErrNoTrack
	}
	if s.enricher == nil {
		return nil, nil
	}
	return s.enricher.ArtistInfo(ctx, cur.Title, cur.Artist), nil
}
