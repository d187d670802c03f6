package engine

import (
	"errors"
	"fmt"
	"sort"
)

// QSource supplies learned action values during a race. The engine only
// reads; updates flow out through the learning pass after the race. A
// missing row must come back as all zeros.
type QSource interface {
	QRow(carID string, state StateHash) [ActionCount]int
}

// ZeroQSource is a QSource with no learned values. Every car acts on an
// all-zero row, which under greedy selection means always the first action.
type ZeroQSource struct{}

func (ZeroQSource) QRow(string, StateHash) [ActionCount]int {
	return [ActionCount]int{}
}

// RunConfig is everything one simulation needs. Selectors is parallel to
// CarIDs; a missing entry falls back to DefaultSelector.
type RunConfig struct {
	Track     *Track
	CarIDs    []string
	Selectors []Selector
	Q         QSource
	Seed      uint64
	Mode      EncodingMode
	MaxTicks  int
}

var (
	ErrNoCars       = errors.New("race needs at least one car")
	ErrTooManyCars  = fmt.Errorf("race supports at most %d cars", MaxCars)
	ErrDuplicateCar = errors.New("duplicate car id in race")
)

// Run simulates a full race to completion or the tick cap. It is a pure
// function of its config: same config, same result, tick for tick.
func Run(cfg RunConfig) (*RaceState, error) {
	if len(cfg.CarIDs) < MinCars {
		return nil, ErrNoCars
	}
	if len(cfg.CarIDs) > MaxCars {
		return nil, ErrTooManyCars
	}
	seen := make(map[string]bool, len(cfg.CarIDs))
	for _, id := range cfg.CarIDs {
		if seen[id] {
			return nil, ErrDuplicateCar
		}
		seen[id] = true
	}
	if cfg.Q == nil {
		cfg.Q = ZeroQSource{}
	}
	maxTicks := cfg.MaxTicks
	if maxTicks <= 0 || maxTicks > MaxTicks {
		maxTicks = MaxTicks
	}

	state, err := placeCars(cfg.Track, cfg.CarIDs)
	if err != nil {
		return nil, err
	}

	for state.Tick < maxTicks && !allFinished(state) {
		runTick(state, cfg)
	}

	return state, nil
}

// placeCars seats cars on start tiles in row-major order, wrapping when
// there are more cars than start tiles.
func placeCars(track *Track, carIDs []string) (*RaceState, error) {
	starts := track.StartPositions()
	if len(starts) == 0 {
		return nil, ErrNoStartTile
	}
	state := &RaceState{Track: track}
	for i, id := range carIDs {
		pos := starts[i%len(starts)]
		tile := track.TileAt(pos.X, pos.Y)
		state.Cars = append(state.Cars, &CarState{
			ID:           id,
			Tile:         *tile,
			X:            pos.X,
			Y:            pos.Y,
			CurrentSpeed: tile.Properties.SpeedModifier,
		})
	}
	return state, nil
}

func allFinished(state *RaceState) bool {
	for _, car := range state.Cars {
		if !car.Finished {
			return false
		}
	}
	return true
}

// carIntent is one car's resolved choice for a tick, before collisions.
type carIntent struct {
	car     *CarState
	idx     int
	state   StateHash
	action  Action
	target  Position
	hitWall bool
	acted   bool
}

// runTick advances the race one tick through its fixed phases: reset,
// intent against a shared pre-tick snapshot, collision resolution,
// tile effects, then history and play-by-play recording.
func runTick(state *RaceState, cfg RunConfig) {
	track := state.Track
	intents := make([]carIntent, len(state.Cars))

	for i, car := range state.Cars {
		car.HitWall = false
		intents[i] = carIntent{car: car, idx: i, target: Position{X: car.X, Y: car.Y}}
		if car.Finished {
			continue
		}
		if car.Stuck {
			car.Stuck = false
			state.PlayByPlay = append(state.PlayByPlay,
				fmt.Sprintf("tick %d: %s is stuck and skips the turn", state.Tick+1, car.ID))
			continue
		}

		hash := EncodeState(track, car.X, car.Y, cfg.Mode)
		sel := DefaultSelector()
		if i < len(cfg.Selectors) {
			sel = cfg.Selectors[i]
		}
		action := sel.Select(cfg.Q.QRow(car.ID, hash), carTickRNG(cfg.Seed, i, state.Tick))

		target, ok := intendedTarget(track, car.X, car.Y, action, car.CurrentSpeed)
		intents[i].state = hash
		intents[i].action = action
		intents[i].target = target
		intents[i].hitWall = !ok
		intents[i].acted = true
	}

	// Every car claims exactly one cell: its target if it is moving, its
	// current cell otherwise. Finished cars stay in the map as stationary
	// claimants, so nobody drives through a car parked on the line. Any
	// cell claimed twice reverts all of its movers; cars already on the
	// cell hold it.
	claims := make(map[Position]int, len(intents))
	for i := range intents {
		claims[intents[i].target]++
	}
	for i := range intents {
		in := &intents[i]
		if !in.acted {
			continue
		}
		moved := in.target.X != in.car.X || in.target.Y != in.car.Y
		conflicted := moved && claims[in.target] > 1

		before := in.car.Tile
		if moved && !conflicted {
			tile := track.TileAt(in.target.X, in.target.Y)
			in.car.X = in.target.X
			in.car.Y = in.target.Y
			in.car.Tile = *tile
			in.car.StepsTaken++
			in.car.CurrentSpeed = tile.Properties.SpeedModifier
			if tile.Properties.SkipNextTurn {
				in.car.Stuck = true
			}
			if tile.Properties.IsFinish {
				in.car.Finished = true
			}
		}
		in.car.HitWall = in.hitWall
		in.car.LastAction = in.action

		entry := HistoryEntry{
			StateHash:     in.state,
			Action:        in.action,
			TileBefore:    before,
			TileAfter:     in.car.Tile,
			HitWall:       in.hitWall,
			Conflicted:    conflicted,
			EnteredSticky: moved && !conflicted && in.car.Tile.Properties.SkipNextTurn,
			Moved:         moved && !conflicted,
		}
		in.car.ActionHistory = append(in.car.ActionHistory, entry)

		state.PlayByPlay = append(state.PlayByPlay, describeMove(state.Tick+1, in.car, entry))
	}

	state.Tick++
}

func describeMove(tick int, car *CarState, entry HistoryEntry) string {
	switch {
	case entry.Conflicted:
		return fmt.Sprintf("tick %d: %s moves %s but collides and falls back to (%d,%d)",
			tick, car.ID, entry.Action, car.X, car.Y)
	case entry.HitWall:
		return fmt.Sprintf("tick %d: %s moves %s into a wall and stays at (%d,%d)",
			tick, car.ID, entry.Action, car.X, car.Y)
	case car.Finished:
		return fmt.Sprintf("tick %d: %s moves %s to (%d,%d) and crosses the finish line in %d steps",
			tick, car.ID, entry.Action, car.X, car.Y, car.StepsTaken)
	case entry.EnteredSticky:
		return fmt.Sprintf("tick %d: %s moves %s to (%d,%d) and gets stuck",
			tick, car.ID, entry.Action, car.X, car.Y)
	case !entry.Moved:
		return fmt.Sprintf("tick %d: %s stays at (%d,%d)", tick, car.ID, car.X, car.Y)
	default:
		return fmt.Sprintf("tick %d: %s moves %s to (%d,%d)", tick, car.ID, entry.Action, car.X, car.Y)
	}
}

// Rankings computes final standings. Finished cars rank by steps taken,
// ties sharing a rank. Unfinished cars rank behind every finisher, closest
// to the finish line first.
func Rankings(state *RaceState) []Ranking {
	type ranked struct {
		car *CarState
		idx int
	}
	var finished, unfinished []ranked
	for i, car := range state.Cars {
		if car.Finished {
			finished = append(finished, ranked{car, i})
		} else {
			unfinished = append(unfinished, ranked{car, i})
		}
	}
	sort.SliceStable(finished, func(a, b int) bool {
		return finished[a].car.StepsTaken < finished[b].car.StepsTaken
	})
	// A car sitting on an unreachable pocket tile carries the sentinel
	// distance and ranks behind every car with a real path.
	farthest := state.Track.MaxProgress + 1
	remaining := func(c *CarState) int {
		if c.Tile.ProgressTowardsFinish == unreachable {
			return farthest
		}
		return c.Tile.ProgressTowardsFinish
	}
	sort.SliceStable(unfinished, func(a, b int) bool {
		return remaining(unfinished[a].car) < remaining(unfinished[b].car)
	})

	rankings := make([]Ranking, 0, len(state.Cars))
	rank := 0
	for i, r := range finished {
		if i == 0 || r.car.StepsTaken != finished[i-1].car.StepsTaken {
			rank = i + 1
		}
		rankings = append(rankings, Ranking{
			CarID:      r.car.ID,
			Rank:       rank,
			StepsTaken: r.car.StepsTaken,
			Finished:   true,
		})
	}
	for i, r := range unfinished {
		rankings = append(rankings, Ranking{
			CarID:      r.car.ID,
			Rank:       len(finished) + i + 1,
			StepsTaken: r.car.StepsTaken,
		})
	}
	return rankings
}

// Winners returns the ids of every finished car holding rank 1. Empty when
// nobody crossed the line.
func Winners(rankings []Ranking) []string {
	var winners []string
	for _, r := range rankings {
		if r.Finished && r.Rank == 1 {
			winners = append(winners, r.CarID)
		}
	}
	return winners
}
