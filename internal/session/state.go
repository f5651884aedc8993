package session

import (
	"errors"

	"github.com/samber/lo"
)

// RepeatMode is the queue repeat behavior reported and accepted by the
// playback service.
type RepeatMode string

const (
	RepeatOff   RepeatMode = "off"
	RepeatTrack RepeatMode = "track"
	RepeatQueue RepeatMode = "queue"
)

// ValidRepeatMode reports whether m is one of the accepted modes.
func ValidRepeatMode(m RepeatMode) bool {
	return m == RepeatOff || m == RepeatTrack || m == RepeatQueue
}

var (
	ErrNotConnected = errors.New("session is not connected")
	ErrNoTrack      = errors.New("no track is currently playing")
)

// TrackSnapshot is the display form of a track. PositionMs and IsPlaying are
// only meaningful on the now-playing track.
type TrackSnapshot struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	DurationMs int64  `json:"duration"`
	PositionMs int64  `json:"position"`
	ArtworkURL string `json:"artwork_url"`
	SourceURI  string `json:"uri"`
	IsPlaying  bool   `json:"is_playing"`
}

// identityKey pairs title and artist into the key used for track-change
// detection.
func (t TrackSnapshot) identityKey() string {
	return t.Title + "::" + t.Artist
}

// Controls mirrors the service-side playback settings.
type Controls struct {
	Volume     int        `json:"volume"`
	IsPlaying  bool       `json:"is_playing"`
	RepeatMode RepeatMode `json:"repeat"`
	Shuffle    bool       `json:"shuffle"`
}

// PlayerState is the canonical session state. The reconciler is its only
// writer; everyone else gets value copies via Clone.
//
// Invariants: Current.PositionMs stays within [0, Current.DurationMs], and
// Queue never contains the now-playing track.
type PlayerState struct {
	Current  *TrackSnapshot  `json:"current"`
	Queue    []TrackSnapshot `json:"queue"`
	Controls Controls        `json:"controls"`
}

// Clone returns a deep copy safe to hand to readers.
func (s PlayerState) Clone() PlayerState {
	out := s
	if s.Current != nil {
		cur := *s.Current
		out.Current = &cur
	}
	out.Queue = lo.Map(s.Queue, func(t TrackSnapshot, _ int) TrackSnapshot { return t })
	return out
}
