// Package store persists tracks, races, Q-tables and car statistics. Two
// implementations exist: an in-memory store for tests and ephemeral runs,
// and a SQLite store for everything else.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/gridrace/gridrace/race/engine"
)

var (
	ErrTrackNotFound = errors.New("track not found")
	ErrRaceNotFound  = errors.New("race not found")
)

// TrackRecord is a stored track: the built grid plus naming metadata.
type TrackRecord struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Track     *engine.Track `json:"track"`
	CreatedAt time.Time     `json:"created_at"`
}

// CarTickStats aggregates one car's tick outcomes over a race, kept with
// the race record so training quality is inspectable after the fact.
type CarTickStats struct {
	CarID      string `json:"car_id"`
	WallHits   int    `json:"wall_hits"`
	StuckTurns int    `json:"stuck_turns"`
	NoMoves    int    `json:"no_moves"`
	Collisions int    `json:"collisions"`
	Moves      int    `json:"moves"`
	// OptimalMoves counts the subset of Moves that ended closer to the
	// finish than they started.
	OptimalMoves int `json:"optimal_moves"`
}

// RaceRecord is a completed race as persisted. The play-by-play is kept
// whole; the SQLite store compresses it at rest.
type RaceRecord struct {
	ID         string           `json:"id"`
	TrackID    string           `json:"track_id"`
	CarIDs     []string         `json:"car_ids"`
	WinnerIDs  []string         `json:"winner_ids"`
	Rankings   []engine.Ranking `json:"rankings"`
	Ticks      int              `json:"ticks"`
	Seed       uint64           `json:"seed"`
	PlayByPlay []string         `json:"play_by_play"`
	TickStats  []CarTickStats   `json:"tick_stats"`
	CreatedAt  time.Time        `json:"created_at"`
}

// CarStats is one car's lifetime record on one track in one mode.
// Mode is "solo" for single-car races and "pvp" otherwise.
type CarStats struct {
	CarID      string `json:"car_id"`
	TrackID    string `json:"track_id"`
	Mode       string `json:"mode"`
	Races      int    `json:"races"`
	Wins       int    `json:"wins"`
	Finishes   int    `json:"finishes"`
	BestSteps  int    `json:"best_steps,omitempty"`
	TotalSteps int    `json:"total_steps"`
	// QUpdates counts Q-table rows written for this car over its races
	// here. Frozen races contribute zero.
	QUpdates int `json:"q_updates"`
}

// RaceFilter narrows race listings. Zero values match everything.
type RaceFilter struct {
	TrackID string
	CarID   string
}

// Matches reports whether the record passes the filter.
func (f RaceFilter) Matches(rec *RaceRecord) bool {
	if f.TrackID != "" && rec.TrackID != f.TrackID {
		return false
	}
	if f.CarID != "" {
		found := false
		for _, id := range rec.CarIDs {
			if id == f.CarID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// QTable is one car's learned values, keyed by state hash.
type QTable map[engine.StateHash][engine.ActionCount]int

// Store is the persistence surface the service composes against.
type Store interface {
	// Tracks
	SaveTrack(ctx context.Context, rec *TrackRecord) error
	GetTrack(ctx context.Context, id string) (*TrackRecord, error)
	ListTracks(ctx context.Context) ([]*TrackRecord, error)

	// Races
	SaveRace(ctx context.Context, rec *RaceRecord) error
	GetRace(ctx context.Context, id string) (*RaceRecord, error)
	ListRecentRaces(ctx context.Context, limit int, filter RaceFilter) ([]*RaceRecord, error)
	// PruneRaces deletes everything but the newest keep races and
	// returns how many were removed.
	PruneRaces(ctx context.Context, keep int) (int, error)

	// Q-tables
	LoadQTable(ctx context.Context, carID string) (QTable, error)
	SaveQRows(ctx context.Context, carID string, rows QTable) error
	ResetQTable(ctx context.Context, carID string) error

	// Stats. RecordRaceStats merges deltas into the lifetime rows:
	// counters add, BestSteps keeps the minimum of the non-zero values.
	RecordRaceStats(ctx context.Context, stats []CarStats) error
	GetCarStats(ctx context.Context, carID string) ([]CarStats, error)

	Close() error
}
