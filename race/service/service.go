// Package service composes the race engine, storage and configuration into
// the operations the transports expose: track management, race simulation
// with learning write-back, Q-table inspection and car statistics.
package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/gridrace/gridrace/race/config"
	"github.com/gridrace/gridrace/race/engine"
	"github.com/gridrace/gridrace/race/traits"
	"github.com/gridrace/gridrace/store"
)

var ErrEmptyTrackName = errors.New("track name must not be empty")

// Notifier receives completed race records. The websocket hub implements
// this; a nil notifier is a valid configuration.
type Notifier interface {
	RaceCompleted(rec *store.RaceRecord)
}

// RaceService is the operation surface shared by the REST API and the MCP
// transport.
type RaceService interface {
	CreateTrack(ctx context.Context, req *CreateTrackRequest) (*store.TrackRecord, error)
	CreateTrackFromConfig(ctx context.Context, configID string) (*store.TrackRecord, error)
	GetTrack(ctx context.Context, id string) (*store.TrackRecord, error)
	ListTracks(ctx context.Context) ([]*store.TrackRecord, error)

	SimulateRace(ctx context.Context, req *SimulateRaceRequest) (*store.RaceRecord, error)
	GetRace(ctx context.Context, id string) (*store.RaceRecord, error)
	ListRecentRaces(ctx context.Context, limit int, filter store.RaceFilter) ([]*store.RaceRecord, error)

	GetQTable(ctx context.Context, carID string) (*QTableView, error)
	ResetQTable(ctx context.Context, carID string) error
	GetCarStats(ctx context.Context, carID string) ([]store.CarStats, error)
	GetCarTraits(carID string) traits.Traits
}

type raceService struct {
	store    store.Store
	tracks   *config.Manager
	cfg      *config.ServerConfig
	notifier Notifier
}

// NewRaceService wires the service. The track config manager may be nil
// when no track directory is configured; notifier may be nil.
func NewRaceService(st store.Store, tracks *config.Manager, cfg *config.ServerConfig, notifier Notifier) RaceService {
	if cfg == nil {
		cfg = config.DefaultServerConfig()
	}
	return &raceService{store: st, tracks: tracks, cfg: cfg, notifier: notifier}
}

func (s *raceService) CreateTrack(ctx context.Context, req *CreateTrackRequest) (*store.TrackRecord, error) {
	if req.Name == "" {
		return nil, ErrEmptyTrackName
	}
	track, err := engine.BuildTrack(req.Width, req.Height, req.Layout)
	if err != nil {
		return nil, err
	}
	rec := &store.TrackRecord{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Track:     track,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveTrack(ctx, rec); err != nil {
		return nil, fmt.Errorf("save track: %w", err)
	}
	log.Printf("track created: %s (%s, %dx%d)", rec.ID, rec.Name, track.Width, track.Height)
	return rec, nil
}

func (s *raceService) CreateTrackFromConfig(ctx context.Context, configID string) (*store.TrackRecord, error) {
	if s.tracks == nil {
		return nil, config.ErrTrackConfigNotFound
	}
	cfg, err := s.tracks.LoadConfig(configID)
	if err != nil {
		return nil, err
	}
	track, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	rec := &store.TrackRecord{
		ID:        uuid.New().String(),
		Name:      cfg.Name,
		Track:     track,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveTrack(ctx, rec); err != nil {
		return nil, fmt.Errorf("save track: %w", err)
	}
	log.Printf("track created from config %s: %s", configID, rec.ID)
	return rec, nil
}

func (s *raceService) GetTrack(ctx context.Context, id string) (*store.TrackRecord, error) {
	return s.store.GetTrack(ctx, id)
}

func (s *raceService) ListTracks(ctx context.Context) ([]*store.TrackRecord, error) {
	return s.store.ListTracks(ctx)
}

// snapshotQSource serves Q-rows from per-car tables loaded before the race
// starts. Races never read the store directly, so a slow disk cannot skew
// the simulation and concurrent races see stable values.
type snapshotQSource map[string]store.QTable

func (s snapshotQSource) QRow(carID string, state engine.StateHash) [engine.ActionCount]int {
	return s[carID][state]
}

func (s *raceService) SimulateRace(ctx context.Context, req *SimulateRaceRequest) (*store.RaceRecord, error) {
	trackRec, err := s.store.GetTrack(ctx, req.TrackID)
	if err != nil {
		return nil, err
	}

	snapshot := make(snapshotQSource, len(req.CarIDs))
	for _, carID := range req.CarIDs {
		table, err := s.store.LoadQTable(ctx, carID)
		if err != nil {
			return nil, fmt.Errorf("load q-table for %s: %w", carID, err)
		}
		snapshot[carID] = table
	}

	seed := randomSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}

	state, err := engine.Run(engine.RunConfig{
		Track:     trackRec.Track,
		CarIDs:    req.CarIDs,
		Selectors: s.selectors(req, snapshot),
		Q:         snapshot,
		Seed:      seed,
		Mode:      s.encodingMode(req),
	})
	if err != nil {
		return nil, err
	}

	rankings := engine.Rankings(state)
	winners := engine.Winners(rankings)

	rec := &store.RaceRecord{
		ID:         uuid.New().String(),
		TrackID:    req.TrackID,
		CarIDs:     req.CarIDs,
		WinnerIDs:  winners,
		Rankings:   rankings,
		Ticks:      state.Tick,
		Seed:       seed,
		PlayByPlay: state.PlayByPlay,
		TickStats:  tickStats(state),
		CreatedAt:  time.Now(),
	}

	var updateCounts map[string]int
	if req.Learn == nil || *req.Learn {
		updateCounts, err = s.applyLearning(ctx, state, rankings, snapshot)
		if err != nil {
			return nil, err
		}
	}

	if err := s.store.SaveRace(ctx, rec); err != nil {
		return nil, fmt.Errorf("save race: %w", err)
	}
	if err := s.store.RecordRaceStats(ctx, raceStatsDeltas(rec, updateCounts)); err != nil {
		return nil, fmt.Errorf("record stats: %w", err)
	}
	if s.cfg.RaceRetention > 0 {
		if _, err := s.store.PruneRaces(ctx, s.cfg.RaceRetention); err != nil {
			log.Printf("prune races: %v", err)
		}
	}

	log.Printf("race %s on track %s: %d cars, %d ticks, winners %v",
		rec.ID, rec.TrackID, len(rec.CarIDs), rec.Ticks, rec.WinnerIDs)
	if s.notifier != nil {
		s.notifier.RaceCompleted(rec)
	}
	return rec, nil
}

// applyLearning folds the race's updates into the snapshot tables and
// writes back only the rows the race touched. It returns how many updates
// each car absorbed, for the stats ledger.
func (s *raceService) applyLearning(ctx context.Context, state *engine.RaceState, rankings []engine.Ranking, snapshot snapshotQSource) (map[string]int, error) {
	updates := engine.BuildUpdates(state, rankings)
	byCar := make(map[string][]engine.QUpdate)
	for _, u := range updates {
		byCar[u.CarID] = append(byCar[u.CarID], u)
	}
	counts := make(map[string]int, len(byCar))
	for carID, carUpdates := range byCar {
		table := snapshot[carID]
		if table == nil {
			table = make(store.QTable)
			snapshot[carID] = table
		}
		engine.ApplyUpdates(table, carUpdates, s.cfg.Rewards)

		touched := make(store.QTable, len(carUpdates))
		for _, u := range carUpdates {
			touched[u.StateHash] = table[u.StateHash]
		}
		if err := s.store.SaveQRows(ctx, carID, touched); err != nil {
			return nil, fmt.Errorf("save q-rows for %s: %w", carID, err)
		}
		counts[carID] = len(carUpdates)
	}
	return counts, nil
}

func (s *raceService) selectors(req *SimulateRaceRequest, snapshot snapshotQSource) []engine.Selector {
	base := s.cfg.Selector()
	if req.Strategy != "" {
		base.Strategy = engine.ParseStrategy(req.Strategy)
	}
	if req.Epsilon != nil {
		base.Epsilon = *req.Epsilon
	}
	if req.Temperature != nil {
		base.Temperature = *req.Temperature
	}
	sels := make([]engine.Selector, len(req.CarIDs))
	for i, carID := range req.CarIDs {
		sel := base
		// Known states stand in for races seen; good enough for decay.
		sel.RacesSeen = len(snapshot[carID])
		sels[i] = sel
	}
	return sels
}

func (s *raceService) encodingMode(req *SimulateRaceRequest) engine.EncodingMode {
	if req.EncodingMode != "" {
		return engine.ParseEncodingMode(req.EncodingMode)
	}
	return s.cfg.EncodingMode()
}

func tickStats(state *engine.RaceState) []store.CarTickStats {
	stats := make([]store.CarTickStats, len(state.Cars))
	for i, car := range state.Cars {
		cs := store.CarTickStats{CarID: car.ID}
		for _, entry := range car.ActionHistory {
			switch {
			case entry.HitWall:
				cs.WallHits++
			case entry.Conflicted:
				cs.Collisions++
			case entry.EnteredSticky:
				cs.StuckTurns++
				cs.Moves++
			case entry.Moved:
				cs.Moves++
			default:
				cs.NoMoves++
			}
			if entry.Moved && progressGained(entry) {
				cs.OptimalMoves++
			}
		}
		stats[i] = cs
	}
	return stats
}

// progressGained reports whether a committed move ended strictly closer to
// the finish. Moves through unreachable pockets never count.
func progressGained(entry engine.HistoryEntry) bool {
	before := entry.TileBefore.ProgressTowardsFinish
	after := entry.TileAfter.ProgressTowardsFinish
	return before >= 0 && after >= 0 && after < before
}

func raceStatsDeltas(rec *store.RaceRecord, updateCounts map[string]int) []store.CarStats {
	mode := "pvp"
	if len(rec.CarIDs) == 1 {
		mode = "solo"
	}
	won := make(map[string]bool, len(rec.WinnerIDs))
	for _, id := range rec.WinnerIDs {
		won[id] = true
	}

	deltas := make([]store.CarStats, 0, len(rec.Rankings))
	for _, r := range rec.Rankings {
		delta := store.CarStats{
			CarID:    r.CarID,
			TrackID:  rec.TrackID,
			Mode:     mode,
			Races:    1,
			QUpdates: updateCounts[r.CarID],
		}
		if r.Finished {
			delta.Finishes = 1
			delta.BestSteps = r.StepsTaken
			delta.TotalSteps = r.StepsTaken
		}
		if won[r.CarID] {
			delta.Wins = 1
		}
		deltas = append(deltas, delta)
	}
	return deltas
}

func (s *raceService) GetRace(ctx context.Context, id string) (*store.RaceRecord, error) {
	return s.store.GetRace(ctx, id)
}

func (s *raceService) ListRecentRaces(ctx context.Context, limit int, filter store.RaceFilter) ([]*store.RaceRecord, error) {
	return s.store.ListRecentRaces(ctx, limit, filter)
}

func (s *raceService) GetQTable(ctx context.Context, carID string) (*QTableView, error) {
	table, err := s.store.LoadQTable(ctx, carID)
	if err != nil {
		return nil, err
	}
	view := &QTableView{
		CarID:  carID,
		States: len(table),
		Rows:   make(map[string][engine.ActionCount]int, len(table)),
	}
	for state, row := range table {
		view.Rows[string(state)] = row
	}
	return view, nil
}

func (s *raceService) ResetQTable(ctx context.Context, carID string) error {
	if err := s.store.ResetQTable(ctx, carID); err != nil {
		return err
	}
	log.Printf("q-table reset for car %s", carID)
	return nil
}

func (s *raceService) GetCarStats(ctx context.Context, carID string) ([]store.CarStats, error) {
	return s.store.GetCarStats(ctx, carID)
}

func (s *raceService) GetCarTraits(carID string) traits.Traits {
	return traits.Generate(carID)
}

func randomSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint64(b[:])
}
