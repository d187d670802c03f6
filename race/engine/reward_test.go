package engine

import "testing"

func TestRewardNumbers_Value(t *testing.T) {
	n := DefaultRewardNumbers()
	tests := []struct {
		name     string
		reward   RewardType
		expected int
	}{
		{"first place", RewardType{Kind: RewardRank, Magnitude: 0}, 100},
		{"second place", RewardType{Kind: RewardRank, Magnitude: 1}, 50},
		{"third place", RewardType{Kind: RewardRank, Magnitude: 2}, 25},
		{"fourth place", RewardType{Kind: RewardRank, Magnitude: 3}, 10},
		{"fifth place", RewardType{Kind: RewardRank, Magnitude: 4}, 0},
		{"ninth place", RewardType{Kind: RewardRank, Magnitude: 8}, 0},
		{"distance carries magnitude", RewardType{Kind: RewardDistance, Magnitude: 42}, 42},
		{"stuck", RewardType{Kind: RewardStuck}, -5},
		{"wall", RewardType{Kind: RewardWall}, -8},
		{"no move", RewardType{Kind: RewardNoMove}, -2},
		{"explore", RewardType{Kind: RewardExplore}, 6},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := n.Value(test.reward); got != test.expected {
				t.Errorf("Expected %d, got %d", test.expected, got)
			}
		})
	}
}

func TestDistanceScore_StageMultipliers(t *testing.T) {
	track := &Track{MaxProgress: 30}
	tests := []struct {
		name     string
		progress int
		expected int
	}{
		{"on the finish", 0, 90},
		{"close third", 10, 60},
		{"middle third boundary", 20, 20},
		{"far end", 30, 0},
		{"close boundary", 9, 63},
		{"unreachable tile", -1, 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := distanceScore(track, test.progress); got != test.expected {
				t.Errorf("Expected %d, got %d", test.expected, got)
			}
		})
	}
}

func TestScore_PenaltiesBeatPosition(t *testing.T) {
	track := buildTestTrack(t, []string{
		"SRF",
		"RRR",
		"RRR",
	})
	goodTile := *track.TileAt(1, 0)

	car := &CarState{
		ID:       "solo",
		Finished: true,
		ActionHistory: []HistoryEntry{
			{Action: ActionUp, TileAfter: goodTile, HitWall: true},
			{Action: ActionRight, TileAfter: goodTile, Moved: true, EnteredSticky: true},
			{Action: ActionStay, TileAfter: goodTile},
			{Action: ActionRight, TileAfter: goodTile, Conflicted: true},
			{Action: ActionRight, TileAfter: goodTile, Moved: true},
			{Action: ActionRight, TileAfter: *track.TileAt(2, 0), Moved: true},
		},
	}

	rewards := score(track, car, 1)
	expected := []RewardKind{
		RewardWall,
		RewardStuck,
		RewardNoMove,
		RewardDistance,
		RewardDistance,
		RewardRank,
	}
	for i, kind := range expected {
		if rewards[i].Kind != kind {
			t.Errorf("Entry %d: expected %s, got %s", i, kind, rewards[i].Kind)
		}
	}
	if rewards[5].Magnitude != 0 {
		t.Errorf("Expected 0-based rank magnitude 0, got %d", rewards[5].Magnitude)
	}
}

func TestScore_UnfinishedCarGetsDistanceOnLastAction(t *testing.T) {
	track := buildTestTrack(t, []string{
		"SRF",
		"RRR",
		"RRR",
	})
	car := &CarState{
		ID: "dnf",
		ActionHistory: []HistoryEntry{
			{Action: ActionRight, TileAfter: *track.TileAt(1, 0), Moved: true},
		},
	}

	rewards := score(track, car, 0)
	if rewards[0].Kind != RewardDistance {
		t.Errorf("Expected distance reward for unfinished last action, got %s", rewards[0].Kind)
	}
}

func TestBuildUpdates_ChainsStates(t *testing.T) {
	track := buildTestTrack(t, []string{
		"WWWWW",
		"SRRRF",
		"WWWWW",
	})

	state, err := Run(RunConfig{
		Track:     track,
		CarIDs:    []string{"solo"},
		Selectors: bestSelectors(1),
		Q:         fixedQSource{action: ActionRight},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	updates := BuildUpdates(state, Rankings(state))
	if len(updates) != len(state.Cars[0].ActionHistory) {
		t.Fatalf("Expected one update per history entry, got %d for %d entries",
			len(updates), len(state.Cars[0].ActionHistory))
	}
	for i, u := range updates {
		last := i == len(updates)-1
		if last && u.NextStateHash != nil {
			t.Error("Expected terminal update to chain to nothing")
		}
		if !last {
			if u.NextStateHash == nil {
				t.Fatalf("Update %d: expected successor state", i)
			}
			if *u.NextStateHash != updates[i+1].StateHash {
				t.Errorf("Update %d: successor does not match next entry's state", i)
			}
		}
	}
	final := updates[len(updates)-1]
	if final.Reward.Kind != RewardRank || final.Reward.Magnitude != 0 {
		t.Errorf("Expected winning rank reward on final update, got %+v", final.Reward)
	}
}
