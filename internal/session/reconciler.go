package session

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Sender is the slice of the connection controller the reconciler needs to
// push user intent back over the wire.
type Sender interface {
	Send(msgType string, data any) bool
}

// ArtworkFunc resolves best-effort cover art for a track. An empty result
// means "no enrichment available"; the server-supplied thumbnail stays.
type ArtworkFunc func(ctx context.Context, title, artist string) string

// trackUpdate is the wire form of a track inside STATE_UPDATE. All fields are
// optional so partial updates merge instead of zeroing.
type trackUpdate struct {
	Title     *string `json:"title"`
	Artist    *string `json:"artist"`
	Thumbnail *string `json:"thumbnail"`
	URI       *string `json:"uri"`
	Position  *int64  `json:"position"`
	Duration  *int64  `json:"duration"`
	IsPlaying *bool   `json:"is_playing"`
}

type queuedTrack struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Thumbnail string `json:"thumbnail"`
	URI       string `json:"uri"`
	Duration  int64  `json:"duration"`
}

type controlsUpdate struct {
	Volume    *int    `json:"volume"`
	IsPlaying *bool   `json:"is_playing"`
	Repeat    *string `json:"repeat"`
	Shuffle   *bool   `json:"shuffle"`
}

// Reconciler is the single writer of PlayerState. It merges inbound events in
// arrival order, interpolates playback position between authoritative
// updates, and serializes user commands back through the Sender without
// touching local state (the service confirms via the next STATE_UPDATE).
type Reconciler struct {
	sender       Sender
	artwork      ArtworkFunc
	onTrackStart func(TrackSnapshot)
	onServerErr  func(string)
	tickInterval time.Duration
	enrichWindow time.Duration
	log          zerolog.Logger

	mu           sync.Mutex
	state        PlayerState
	lastTrackKey string
	lastAdvance  time.Time
	tickStop     chan struct{}
}

// ReconcilerOptions wires the reconciler's collaborators. Artwork,
// OnTrackStart and OnServerError may be nil.
type ReconcilerOptions struct {
	Sender        Sender
	Artwork       ArtworkFunc
	OnTrackStart  func(TrackSnapshot)
	OnServerError func(string)
	TickInterval  time.Duration
	EnrichTimeout time.Duration
}

func NewReconciler(opts ReconcilerOptions, log zerolog.Logger) *Reconciler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.EnrichTimeout <= 0 {
		opts.EnrichTimeout = 10 * time.Second
	}
	return &Reconciler{
		sender:       opts.Sender,
		artwork:      opts.Artwork,
		onTrackStart: opts.OnTrackStart,
		onServerErr:  opts.OnServerError,
		tickInterval: opts.TickInterval,
		enrichWindow: opts.EnrichTimeout,
		log:          log.With().Str("component", "reconciler").Logger(),
	}
}

// State returns a deep snapshot safe for any reader.
func (r *Reconciler) State() PlayerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Apply merges one inbound event. Never panics and never propagates errors;
// malformed pieces are logged and skipped.
func (r *Reconciler) Apply(ev Event) {
	switch e := ev.(type) {
	case HelloEvent:
		// Heartbeat cadence is the connection controller's business.
		r.log.Debug().Int64("heartbeat_interval", e.HeartbeatInterval).Msg("handshake acknowledged")
	case StateUpdateEvent:
		r.applyStateUpdate(e)
	case ErrorEvent:
		r.log.Warn().Str("message", e.Message).Msg("service reported error")
		if r.onServerErr != nil {
			r.onServerErr(e.Message)
		}
	default:
		r.log.Warn().Str("type", ev.eventType()).Msg("unhandled event variant")
	}
}

var jsonNull = []byte("null")

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

func (r *Reconciler) applyStateUpdate(ev StateUpdateEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(ev.Current) > 0 {
		r.mergeCurrentLocked(ev.Current)
	}
	if len(ev.Queue) > 0 && !isJSONNull(ev.Queue) {
		r.mergeQueueLocked(ev.Queue)
	}
	if len(ev.Controls) > 0 && !isJSONNull(ev.Controls) {
		r.mergeControlsLocked(ev.Controls)
	}
}

func (r *Reconciler) mergeCurrentLocked(raw json.RawMessage) {
	if isJSONNull(raw) {
		// Explicit "nothing playing".
		r.state.Current = nil
		r.state.Controls.IsPlaying = false
		r.lastTrackKey = ""
		return
	}

	var tu trackUpdate
	if err := json.Unmarshal(raw, &tu); err != nil {
		r.log.Warn().Err(err).Msg("skipping malformed current track")
		return
	}

	cur := r.state.Current
	if cur == nil {
		cur = &TrackSnapshot{}
		r.state.Current = cur
	}

	if tu.Title != nil {
		cur.Title = *tu.Title
	}
	if tu.Artist != nil {
		cur.Artist = *tu.Artist
	}
	if tu.URI != nil {
		cur.SourceURI = *tu.URI
	}
	if tu.Duration != nil && *tu.Duration >= 0 {
		cur.DurationMs = *tu.Duration
	}
	if tu.Position != nil {
		cur.PositionMs = lo.Clamp(*tu.Position, 0, cur.DurationMs)
		// Authoritative position resets the interpolation origin, so a local
		// tick in the same instant cannot push past it.
		r.lastAdvance = time.Now()
	}
	if tu.IsPlaying != nil {
		cur.IsPlaying = *tu.IsPlaying
		r.state.Controls.IsPlaying = *tu.IsPlaying
	}

	key := cur.identityKey()
	changed := key != r.lastTrackKey
	if changed {
		r.lastTrackKey = key
		// New track: the service thumbnail is the starting point until
		// enrichment lands.
		if tu.Thumbnail != nil {
			cur.ArtworkURL = *tu.Thumbnail
		} else {
			cur.ArtworkURL = ""
		}
		if r.onTrackStart != nil {
			snap := *cur
			go r.onTrackStart(snap)
		}
		r.triggerArtworkLocked(key, cur.Title, cur.Artist)
	} else if cur.ArtworkURL == "" && tu.Thumbnail != nil {
		// Same track, no art resolved yet: accept the service thumbnail but
		// never clobber art we already resolved.
		cur.ArtworkURL = *tu.Thumbnail
	}

	cur.PositionMs = lo.Clamp(cur.PositionMs, 0, cur.DurationMs)
}

// triggerArtworkLocked starts one async resolution for the given identity.
// The result applies only if that identity is still current when it arrives.
func (r *Reconciler) triggerArtworkLocked(key, title, artist string) {
	if r.artwork == nil {
		return
	}
	window := r.enrichWindow
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), window)
		defer cancel()

		art := r.artwork(ctx, title, artist)
		if art == "" {
			return
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.lastTrackKey != key || r.state.Current == nil {
			r.log.Debug().Str("key", key).Msg("discarding stale artwork result")
			return
		}
		r.state.Current.ArtworkURL = art
	}()
}

func (r *Reconciler) mergeQueueLocked(raw json.RawMessage) {
	var incoming []queuedTrack
	if err := json.Unmarshal(raw, &incoming); err != nil {
		r.log.Warn().Err(err).Msg("skipping malformed queue")
		return
	}

	tracks := lo.Map(incoming, func(q queuedTrack, _ int) TrackSnapshot {
		return TrackSnapshot{
			Title:      q.Title,
			Artist:     q.Artist,
			DurationMs: q.Duration,
			ArtworkURL: q.Thumbnail,
			SourceURI:  q.URI,
		}
	})
	// The now-playing track never sits in the queue.
	r.state.Queue = lo.Filter(tracks, func(t TrackSnapshot, _ int) bool {
		return t.identityKey() != r.lastTrackKey
	})
}

func (r *Reconciler) mergeControlsLocked(raw json.RawMessage) {
	var cu controlsUpdate
	if err := json.Unmarshal(raw, &cu); err != nil {
		r.log.Warn().Err(err).Msg("skipping malformed controls")
		return
	}

	if cu.Volume != nil {
		r.state.Controls.Volume = lo.Clamp(*cu.Volume, 0, 100)
	}
	if cu.IsPlaying != nil {
		r.state.Controls.IsPlaying = *cu.IsPlaying
		if r.state.Current != nil {
			r.state.Current.IsPlaying = *cu.IsPlaying
		}
	}
	if cu.Repeat != nil {
		if mode := RepeatMode(*cu.Repeat); ValidRepeatMode(mode) {
			r.state.Controls.RepeatMode = mode
		}
	}
	if cu.Shuffle != nil {
		r.state.Controls.Shuffle = *cu.Shuffle
	}
}

// StartTicker begins local position interpolation so the progress display
// does not stall between server pushes. Restart-safe.
func (r *Reconciler) StartTicker() {
	r.mu.Lock()
	if r.tickStop != nil {
		close(r.tickStop)
	}
	stop := make(chan struct{})
	r.tickStop = stop
	r.lastAdvance = time.Now()
	interval := r.tickInterval
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.tick()
			}
		}
	}()
}

// StopTicker halts interpolation. Idempotent.
func (r *Reconciler) StopTicker() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tickStop != nil {
		close(r.tickStop)
		r.tickStop = nil
	}
}

// tick advances the local position by measured wall-clock time, clamped to
// the track duration. The position only moves forward here; authoritative
// updates may still rewind it.
func (r *Reconciler) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cur := r.state.Current
	if cur == nil || !r.state.Controls.IsPlaying {
		r.lastAdvance = now
		return
	}

	elapsed := now.Sub(r.lastAdvance).Milliseconds()
	if elapsed <= 0 {
		return
	}
	r.lastAdvance = now
	cur.PositionMs = lo.Clamp(cur.PositionMs+elapsed, 0, cur.DurationMs)
}

// Command surface. Each call serializes intent to the service and nothing
// more; local state changes only when the next STATE_UPDATE confirms.

func (r *Reconciler) send(msgType string, data any) bool {
	if r.sender == nil {
		return false
	}
	return r.sender.Send(msgType, data)
}

func (r *Reconciler) Play() bool  { return r.send(msgPlay, nil) }
func (r *Reconciler) Pause() bool { return r.send(msgPause, nil) }
func (r *Reconciler) Skip() bool  { return r.send(msgSkip, nil) }

func (r *Reconciler) Seek(positionMs int64) bool {
	if positionMs < 0 {
		positionMs = 0
	}
	return r.send(msgSeek, seekPayload{Position: positionMs})
}

func (r *Reconciler) SetVolume(volume int) bool {
	return r.send(msgVolume, volumePayload{Volume: lo.Clamp(volume, 0, 100)})
}

func (r *Reconciler) ToggleShuffle() bool { return r.send(msgShuffle, nil) }

func (r *Reconciler) SetRepeat(mode RepeatMode) bool {
	if !ValidRepeatMode(mode) {
		r.log.Warn().Str("mode", string(mode)).Msg("rejecting invalid repeat mode")
		return false
	}
	return r.send(msgRepeat, repeatPayload{Mode: mode})
}
