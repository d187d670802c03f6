package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps everything in maps behind one mutex. It backs tests
// and --ephemeral runs where nothing should outlive the process.
type MemoryStore struct {
	mu      sync.RWMutex
	tracks  map[string]*TrackRecord
	races   map[string]*RaceRecord
	raceIDs []string
	qtables map[string]QTable
	stats   map[statsKey]*CarStats
}

type statsKey struct {
	carID   string
	trackID string
	mode    string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tracks:  make(map[string]*TrackRecord),
		races:   make(map[string]*RaceRecord),
		qtables: make(map[string]QTable),
		stats:   make(map[statsKey]*CarStats),
	}
}

func (s *MemoryStore) SaveTrack(_ context.Context, rec *TrackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks[rec.ID] = rec
	return nil
}

func (s *MemoryStore) GetTrack(_ context.Context, id string) (*TrackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tracks[id]
	if !ok {
		return nil, ErrTrackNotFound
	}
	return rec, nil
}

func (s *MemoryStore) ListTracks(_ context.Context) ([]*TrackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*TrackRecord, 0, len(s.tracks))
	for _, rec := range s.tracks {
		out = append(out, rec)
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) SaveRace(_ context.Context, rec *RaceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.races[rec.ID]; !exists {
		s.raceIDs = append(s.raceIDs, rec.ID)
	}
	s.races[rec.ID] = rec
	return nil
}

func (s *MemoryStore) GetRace(_ context.Context, id string) (*RaceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.races[id]
	if !ok {
		return nil, ErrRaceNotFound
	}
	return rec, nil
}

func (s *MemoryStore) ListRecentRaces(_ context.Context, limit int, filter RaceFilter) ([]*RaceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = len(s.raceIDs)
	}
	var out []*RaceRecord
	for i := len(s.raceIDs) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.races[s.raceIDs[i]]
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) PruneRaces(_ context.Context, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keep < 0 {
		keep = 0
	}
	excess := len(s.raceIDs) - keep
	if excess <= 0 {
		return 0, nil
	}
	for _, id := range s.raceIDs[:excess] {
		delete(s.races, id)
	}
	s.raceIDs = append([]string(nil), s.raceIDs[excess:]...)
	return excess, nil
}

func (s *MemoryStore) LoadQTable(_ context.Context, carID string) (QTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	table := make(QTable, len(s.qtables[carID]))
	for state, row := range s.qtables[carID] {
		table[state] = row
	}
	return table, nil
}

func (s *MemoryStore) SaveQRows(_ context.Context, carID string, rows QTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.qtables[carID]
	if !ok {
		table = make(QTable, len(rows))
		s.qtables[carID] = table
	}
	for state, row := range rows {
		table[state] = row
	}
	return nil
}

func (s *MemoryStore) ResetQTable(_ context.Context, carID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.qtables, carID)
	return nil
}

func (s *MemoryStore) RecordRaceStats(_ context.Context, stats []CarStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, delta := range stats {
		key := statsKey{delta.CarID, delta.TrackID, delta.Mode}
		row, ok := s.stats[key]
		if !ok {
			row = &CarStats{CarID: delta.CarID, TrackID: delta.TrackID, Mode: delta.Mode}
			s.stats[key] = row
		}
		mergeStats(row, delta)
	}
	return nil
}

func mergeStats(row *CarStats, delta CarStats) {
	row.Races += delta.Races
	row.Wins += delta.Wins
	row.Finishes += delta.Finishes
	row.TotalSteps += delta.TotalSteps
	row.QUpdates += delta.QUpdates
	if delta.BestSteps > 0 && (row.BestSteps == 0 || delta.BestSteps < row.BestSteps) {
		row.BestSteps = delta.BestSteps
	}
}

func (s *MemoryStore) GetCarStats(_ context.Context, carID string) ([]CarStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []CarStats
	for key, row := range s.stats {
		if key.carID == carID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].TrackID != out[b].TrackID {
			return out[a].TrackID < out[b].TrackID
		}
		return out[a].Mode < out[b].Mode
	})
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
