package engine

// rankPayouts maps 0-based shared rank to the finish reward. Fifth place
// and beyond pay nothing.
var rankPayouts = [...]int{100, 50, 25, 10, 0}

// RewardNumbers is the valuation table turning tagged rewards into the
// scalar fed to the Q-update. The zero value is unusable; start from
// DefaultRewardNumbers.
type RewardNumbers struct {
	Stuck   int `json:"stuck" yaml:"stuck"`
	Wall    int `json:"wall" yaml:"wall"`
	NoMove  int `json:"no_move" yaml:"no_move"`
	Explore int `json:"explore" yaml:"explore"`
}

// DefaultRewardNumbers returns the standard penalty schedule.
func DefaultRewardNumbers() RewardNumbers {
	return RewardNumbers{
		Stuck:   -5,
		Wall:    -8,
		NoMove:  -2,
		Explore: 6,
	}
}

// Value resolves a tagged reward to its scalar. Rank and distance rewards
// carry their own magnitudes; the rest come from the valuation table.
// Explore is valued here but no score path produces it yet.
func (n RewardNumbers) Value(r RewardType) int {
	switch r.Kind {
	case RewardRank:
		if r.Magnitude >= len(rankPayouts) {
			return 0
		}
		return rankPayouts[r.Magnitude]
	case RewardDistance:
		return r.Magnitude
	case RewardStuck:
		return n.Stuck
	case RewardWall:
		return n.Wall
	case RewardNoMove:
		return n.NoMove
	case RewardExplore:
		return n.Explore
	}
	return 0
}

// distanceScore rewards closeness to the finish. The remaining-distance
// delta is multiplied up as the car enters the closer thirds of the track,
// so late progress teaches harder than early progress.
func distanceScore(track *Track, progress int) int {
	if progress < 0 {
		return 0
	}
	multiplier := 1
	switch {
	case progress*3 <= track.MaxProgress:
		multiplier = 3
	case progress*3 <= track.MaxProgress*2:
		multiplier = 2
	}
	return (track.MaxProgress - progress) * multiplier
}

// score assigns a tagged reward to every recorded action of one car.
// Penalties take precedence over positional rewards: a wall hit or a sticky
// landing is always taught as such, whatever the tile underneath scores.
// Collision reverts carry no penalty and fall through to position.
func score(track *Track, car *CarState, rank int) []RewardType {
	rewards := make([]RewardType, len(car.ActionHistory))
	last := len(car.ActionHistory) - 1
	for i, entry := range car.ActionHistory {
		switch {
		case entry.HitWall:
			rewards[i] = RewardType{Kind: RewardWall}
		case entry.EnteredSticky:
			rewards[i] = RewardType{Kind: RewardStuck}
		case !entry.Moved && !entry.Conflicted:
			rewards[i] = RewardType{Kind: RewardNoMove}
		case i == last && car.Finished:
			rewards[i] = RewardType{Kind: RewardRank, Magnitude: rank - 1}
		default:
			rewards[i] = RewardType{
				Kind:      RewardDistance,
				Magnitude: distanceScore(track, entry.TileAfter.ProgressTowardsFinish),
			}
		}
	}
	return rewards
}

// BuildUpdates turns a finished race into the Q-update batch for every car.
// Each recorded action yields one update chaining to the following tick's
// state; the final action of each car is terminal and chains to nothing.
func BuildUpdates(state *RaceState, rankings []Ranking) []QUpdate {
	rankByCar := make(map[string]int, len(rankings))
	for _, r := range rankings {
		if r.Finished {
			rankByCar[r.CarID] = r.Rank
		}
	}

	var updates []QUpdate
	for _, car := range state.Cars {
		rewards := score(state.Track, car, rankByCar[car.ID])
		for i, entry := range car.ActionHistory {
			u := QUpdate{
				CarID:     car.ID,
				StateHash: entry.StateHash,
				Action:    entry.Action,
				Reward:    rewards[i],
			}
			if i+1 < len(car.ActionHistory) {
				next := car.ActionHistory[i+1].StateHash
				u.NextStateHash = &next
			}
			updates = append(updates, u)
		}
	}
	return updates
}
