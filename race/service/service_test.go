package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gridrace/gridrace/race/config"
	"github.com/gridrace/gridrace/race/engine"
	"github.com/gridrace/gridrace/store"
)

type recordingNotifier struct {
	races []*store.RaceRecord
}

func (n *recordingNotifier) RaceCompleted(rec *store.RaceRecord) {
	n.races = append(n.races, rec)
}

func newTestService(t *testing.T) (RaceService, *store.MemoryStore, *recordingNotifier) {
	t.Helper()
	st := store.NewMemoryStore()
	notifier := &recordingNotifier{}
	return NewRaceService(st, nil, config.DefaultServerConfig(), notifier), st, notifier
}

func simpleLayout() [][]engine.TileProperties {
	return [][]engine.TileProperties{
		{engine.StartTile(), engine.NormalTile(), engine.FinishTile()},
		{engine.NormalTile(), engine.NormalTile(), engine.NormalTile()},
		{engine.NormalTile(), engine.NormalTile(), engine.NormalTile()},
	}
}

func createTestTrack(t *testing.T, svc RaceService) *store.TrackRecord {
	t.Helper()
	rec, err := svc.CreateTrack(context.Background(), &CreateTrackRequest{
		Name:   "test track",
		Width:  3,
		Height: 3,
		Layout: simpleLayout(),
	})
	if err != nil {
		t.Fatalf("CreateTrack failed: %v", err)
	}
	return rec
}

func TestProgressGained(t *testing.T) {
	tile := func(progress int) engine.TrackTile {
		return engine.TrackTile{ProgressTowardsFinish: progress}
	}
	cases := []struct {
		name   string
		before int
		after  int
		want   bool
	}{
		{"closer", 3, 2, true},
		{"same", 3, 3, false},
		{"farther", 2, 3, false},
		{"from unreachable", -1, 2, false},
		{"into unreachable", 2, -1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := engine.HistoryEntry{
				Moved:      true,
				TileBefore: tile(tc.before),
				TileAfter:  tile(tc.after),
			}
			if got := progressGained(entry); got != tc.want {
				t.Errorf("progressGained(%d->%d) = %v, want %v", tc.before, tc.after, got, tc.want)
			}
		})
	}
}

func TestCreateTrack_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateTrack(ctx, &CreateTrackRequest{Width: 3, Height: 3, Layout: simpleLayout()}); err != ErrEmptyTrackName {
		t.Errorf("Expected ErrEmptyTrackName, got %v", err)
	}

	layout := simpleLayout()
	layout[0][2] = engine.NormalTile()
	_, err := svc.CreateTrack(ctx, &CreateTrackRequest{Name: "x", Width: 3, Height: 3, Layout: layout})
	if !errors.Is(err, engine.ErrNoFinishTile) {
		t.Errorf("Expected engine validation to surface, got %v", err)
	}
}

func TestCreateTrack_PersistsAndLists(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	rec := createTestTrack(t, svc)
	got, err := svc.GetTrack(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if got.Name != "test track" {
		t.Errorf("Expected name 'test track', got %q", got.Name)
	}

	list, err := svc.ListTracks(ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("Expected 1 track listed, got %d, err %v", len(list), err)
	}
}

func TestCreateTrackFromConfig(t *testing.T) {
	dir := t.TempDir()
	content := `{
		"name": "config oval",
		"layout": ["SRF", "RRR", "RRR"],
		"legend": {"S": "start", "R": "road", "F": "finish"}
	}`
	if err := os.WriteFile(filepath.Join(dir, "oval.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	manager, err := config.NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	svc := NewRaceService(store.NewMemoryStore(), manager, config.DefaultServerConfig(), nil)

	rec, err := svc.CreateTrackFromConfig(context.Background(), "oval")
	if err != nil {
		t.Fatalf("CreateTrackFromConfig failed: %v", err)
	}
	if rec.Name != "config oval" {
		t.Errorf("Expected config name, got %q", rec.Name)
	}

	if _, err := svc.CreateTrackFromConfig(context.Background(), "ghost"); err != config.ErrTrackConfigNotFound {
		t.Errorf("Expected ErrTrackConfigNotFound, got %v", err)
	}
}

func TestSimulateRace_RecordsEverything(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()
	track := createTestTrack(t, svc)

	seed := uint64(42)
	rec, err := svc.SimulateRace(ctx, &SimulateRaceRequest{
		TrackID: track.ID,
		CarIDs:  []string{"car-a", "car-b"},
		Seed:    &seed,
	})
	if err != nil {
		t.Fatalf("SimulateRace failed: %v", err)
	}

	if rec.Seed != 42 {
		t.Errorf("Expected seed echoed back, got %d", rec.Seed)
	}
	if rec.Ticks <= 0 || rec.Ticks > engine.MaxTicks {
		t.Errorf("Ticks out of range: %d", rec.Ticks)
	}
	if len(rec.Rankings) != 2 {
		t.Errorf("Expected rankings for both cars, got %d", len(rec.Rankings))
	}
	if len(rec.TickStats) != 2 {
		t.Errorf("Expected tick stats for both cars, got %d", len(rec.TickStats))
	}
	if len(rec.PlayByPlay) == 0 {
		t.Error("Expected a play-by-play")
	}

	got, err := svc.GetRace(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRace failed: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("Round trip id mismatch: %s vs %s", got.ID, rec.ID)
	}

	recent, err := svc.ListRecentRaces(ctx, 5, store.RaceFilter{})
	if err != nil || len(recent) != 1 {
		t.Errorf("Expected 1 recent race, got %d, err %v", len(recent), err)
	}

	if len(notifier.races) != 1 || notifier.races[0].ID != rec.ID {
		t.Error("Expected notifier to see the completed race")
	}

	stats, err := svc.GetCarStats(ctx, "car-a")
	if err != nil {
		t.Fatalf("GetCarStats failed: %v", err)
	}
	if len(stats) != 1 || stats[0].Mode != "pvp" || stats[0].Races != 1 {
		t.Errorf("Expected one pvp race recorded, got %+v", stats)
	}
}

func TestSimulateRace_DeterministicForSeed(t *testing.T) {
	ctx := context.Background()
	seed := uint64(7)

	run := func() *store.RaceRecord {
		svc, _, _ := newTestService(t)
		track := createTestTrack(t, svc)
		learn := false
		rec, err := svc.SimulateRace(ctx, &SimulateRaceRequest{
			TrackID: track.ID,
			CarIDs:  []string{"car-a"},
			Seed:    &seed,
			Learn:   &learn,
		})
		if err != nil {
			t.Fatalf("SimulateRace failed: %v", err)
		}
		return rec
	}

	first := run()
	second := run()
	if first.Ticks != second.Ticks {
		t.Fatalf("Ticks diverged: %d vs %d", first.Ticks, second.Ticks)
	}
	if len(first.PlayByPlay) != len(second.PlayByPlay) {
		t.Fatalf("Play-by-play length diverged")
	}
	for i := range first.PlayByPlay {
		if first.PlayByPlay[i] != second.PlayByPlay[i] {
			t.Fatalf("Play-by-play diverged at %d", i)
		}
	}
}

func TestSimulateRace_LearningWritesBack(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	track := createTestTrack(t, svc)

	seed := uint64(1)
	if _, err := svc.SimulateRace(ctx, &SimulateRaceRequest{
		TrackID: track.ID,
		CarIDs:  []string{"learner"},
		Seed:    &seed,
	}); err != nil {
		t.Fatalf("SimulateRace failed: %v", err)
	}

	view, err := svc.GetQTable(ctx, "learner")
	if err != nil {
		t.Fatalf("GetQTable failed: %v", err)
	}
	if view.States == 0 {
		t.Error("Expected learning to persist at least one state row")
	}

	stats, err := svc.GetCarStats(ctx, "learner")
	if err != nil {
		t.Fatalf("GetCarStats failed: %v", err)
	}
	if len(stats) != 1 || stats[0].QUpdates == 0 {
		t.Errorf("Expected q_updates counted in stats, got %+v", stats)
	}

	if err := svc.ResetQTable(ctx, "learner"); err != nil {
		t.Fatalf("ResetQTable failed: %v", err)
	}
	view, err = svc.GetQTable(ctx, "learner")
	if err != nil || view.States != 0 {
		t.Errorf("Expected empty table after reset, got %d states, err %v", view.States, err)
	}
}

func TestSimulateRace_LearnDisabledFreezesTables(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	track := createTestTrack(t, svc)

	seed := uint64(1)
	learn := false
	if _, err := svc.SimulateRace(ctx, &SimulateRaceRequest{
		TrackID: track.ID,
		CarIDs:  []string{"frozen"},
		Seed:    &seed,
		Learn:   &learn,
	}); err != nil {
		t.Fatalf("SimulateRace failed: %v", err)
	}

	view, err := svc.GetQTable(ctx, "frozen")
	if err != nil {
		t.Fatalf("GetQTable failed: %v", err)
	}
	if view.States != 0 {
		t.Errorf("Expected no learning with learn=false, got %d states", view.States)
	}

	stats, err := svc.GetCarStats(ctx, "frozen")
	if err != nil {
		t.Fatalf("GetCarStats failed: %v", err)
	}
	if len(stats) != 1 || stats[0].QUpdates != 0 {
		t.Errorf("Expected zero q_updates for frozen race, got %+v", stats)
	}
}

func TestSimulateRace_UnknownTrack(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.SimulateRace(context.Background(), &SimulateRaceRequest{
		TrackID: "ghost",
		CarIDs:  []string{"car"},
	})
	if err != store.ErrTrackNotFound {
		t.Errorf("Expected ErrTrackNotFound, got %v", err)
	}
}

func TestSimulateRace_SoloModeStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	track := createTestTrack(t, svc)

	seed := uint64(3)
	if _, err := svc.SimulateRace(ctx, &SimulateRaceRequest{
		TrackID: track.ID,
		CarIDs:  []string{"lonely"},
		Seed:    &seed,
	}); err != nil {
		t.Fatalf("SimulateRace failed: %v", err)
	}

	stats, err := svc.GetCarStats(ctx, "lonely")
	if err != nil {
		t.Fatalf("GetCarStats failed: %v", err)
	}
	if len(stats) != 1 || stats[0].Mode != "solo" {
		t.Errorf("Expected solo stats row, got %+v", stats)
	}
}

func TestGetCarTraits_Deterministic(t *testing.T) {
	svc, _, _ := newTestService(t)
	first := svc.GetCarTraits("car-x")
	second := svc.GetCarTraits("car-x")
	if first != second {
		t.Errorf("Expected stable traits, got %+v vs %+v", first, second)
	}
	if first.CarID != "car-x" || first.Rarity == "" {
		t.Errorf("Traits incomplete: %+v", first)
	}
}
