// /internal/history/history.go
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/keshon/datastore"

	"github.com/evictbot/playerlink/internal/session"
)

const playedHistoryLimit int = 50

// PlayedTrack is one entry in a guild's listening history.
type PlayedTrack struct {
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	SourceURI  string    `json:"uri"`
	DurationMs int64     `json:"duration"`
	PlayedAt   time.Time `json:"played_at"`
}

// Record is everything persisted per guild.
type Record struct {
	PlayedList []PlayedTrack `json:"played"`
}

// Store persists per-guild listening history to a JSON-backed datastore.
type Store struct {
	ds *datastore.DataStore
}

func New(filePath string) (*Store, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Store{ds: ds}, nil
}

func (s *Store) Close() error {
	return s.ds.Close()
}

// Helper function to get or create a Record for a guild
func (s *Store) getOrCreateGuildRecord(guildID string) (*Record, error) {
	data, exists := s.ds.Get(guildID)
	if !exists {
		newRecord := &Record{
			PlayedList: []PlayedTrack{},
		}
		s.ds.Add(guildID, newRecord)
		return newRecord, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}

	var record Record
	err = json.Unmarshal(jsonData, &record)
	if err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}

	if len(record.PlayedList) > playedHistoryLimit {
		record.PlayedList = record.PlayedList[len(record.PlayedList)-playedHistoryLimit:]
	}

	return &record, nil
}

// Append adds one played track to a guild's history. A repeat of the most
// recent entry is skipped, so reconnects do not duplicate the current track.
func (s *Store) Append(guildID string, track PlayedTrack) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	if n := len(record.PlayedList); n > 0 {
		last := record.PlayedList[n-1]
		if last.Title == track.Title && last.Artist == track.Artist {
			return nil
		}
	}

	record.PlayedList = append(record.PlayedList, track)
	if len(record.PlayedList) > playedHistoryLimit {
		record.PlayedList = record.PlayedList[len(record.PlayedList)-playedHistoryLimit:]
	}
	s.ds.Add(guildID, record)
	return nil
}

// Recent returns a guild's history, most recent first.
func (s *Store) Recent(guildID string) ([]PlayedTrack, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}

	out := make([]PlayedTrack, len(record.PlayedList))
	for i, t := range record.PlayedList {
		out[len(out)-1-i] = t
	}
	return out, nil
}

// GuildRecorder adapts the store to a single guild's track-start stream.
type GuildRecorder struct {
	store   *Store
	guildID string
}

// Guild returns a recorder bound to one guild.
func (s *Store) Guild(guildID string) *GuildRecorder {
	return &GuildRecorder{store: s, guildID: guildID}
}

func (g *GuildRecorder) Record(t session.TrackSnapshot) error {
	return g.store.Append(g.guildID, PlayedTrack{
		Title:      t.Title,
		Artist:     t.Artist,
		SourceURI:  t.SourceURI,
		DurationMs: t.DurationMs,
		PlayedAt:   time.Now(),
	})
}
