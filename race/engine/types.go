// Package engine implements the deterministic race simulation core: track
// building, state encoding, action selection, the tick loop and the
// Q-learning arithmetic. It has no I/O and no clock; everything above it
// (service, storage, transports) composes around these pure pieces.
package engine

// Action is an index into a car's action-value vector.
type Action int

// Canonical action order. The encoder, the selector and the learning store
// all share this indexing; changing it invalidates every stored Q-table.
const (
	ActionUp Action = iota
	ActionDown
	ActionLeft
	ActionRight
	ActionStay

	ActionCount = 5
)

const (
	// Track dimension limits
	MinTrackSize = 3
	MaxTrackSize = 50

	// Race limits
	MinCars  = 1
	MaxCars  = 8
	MaxTicks = 100

	// Speed modifiers in tiles per turn
	DefaultSpeed = 2
	BoostSpeed   = 3

	// Q-learning constants
	Alpha     = 0.1
	Gamma     = 0.9
	MaxQValue = 100
	MinQValue = -100
)

// String returns the action name used in play-by-play logs and APIs.
func (a Action) String() string {
	switch a {
	case ActionUp:
		return "up"
	case ActionDown:
		return "down"
	case ActionLeft:
		return "left"
	case ActionRight:
		return "right"
	case ActionStay:
		return "stay"
	}
	return "unknown"
}

// ParseAction converts an action name back to its index.
func ParseAction(s string) (Action, bool) {
	switch s {
	case "up":
		return ActionUp, true
	case "down":
		return ActionDown, true
	case "left":
		return ActionLeft, true
	case "right":
		return ActionRight, true
	case "stay":
		return ActionStay, true
	}
	return 0, false
}

// TileProperties describes the behavior of one grid cell.
type TileProperties struct {
	// SpeedModifier is how many tiles per turn a car moves after entering
	// this tile. 2 is baseline, below is slow, above is boost.
	SpeedModifier int `json:"speed_modifier"`
	// BlocksMovement marks the tile as a wall.
	BlocksMovement bool `json:"blocks_movement"`
	// SkipNextTurn makes the entering car lose its next turn.
	SkipNextTurn bool `json:"skip_next_turn"`
	// Damage is reserved: it round-trips through storage but has no
	// gameplay effect yet. Negative values are healing.
	Damage int `json:"damage"`
	// IsFinish marks a finish line tile.
	IsFinish bool `json:"is_finish"`
	// IsStart marks a starting tile.
	IsStart bool `json:"is_start"`
}

// NormalTile returns a plain baseline-speed tile.
func NormalTile() TileProperties {
	return TileProperties{SpeedModifier: DefaultSpeed}
}

// BoostTile returns a tile with the given speed modifier.
func BoostTile(speed int) TileProperties {
	return TileProperties{SpeedModifier: speed}
}

// StickyTile returns a tile that costs the entering car its next turn.
func StickyTile() TileProperties {
	return TileProperties{SpeedModifier: DefaultSpeed, SkipNextTurn: true}
}

// WallTile returns a blocking tile.
func WallTile() TileProperties {
	return TileProperties{SpeedModifier: DefaultSpeed, BlocksMovement: true}
}

// FinishTile returns a finish line tile.
func FinishTile() TileProperties {
	return TileProperties{SpeedModifier: DefaultSpeed, IsFinish: true}
}

// StartTile returns a starting tile.
func StartTile() TileProperties {
	return TileProperties{SpeedModifier: DefaultSpeed, IsStart: true}
}

// TrackTile is a cell of a built track: its properties plus the precomputed
// distance field value. Tiles are created once by BuildTrack and never
// mutated afterwards.
type TrackTile struct {
	Properties TileProperties `json:"properties"`
	// ProgressTowardsFinish is the minimum number of unobstructed
	// orthogonal steps to the nearest finish tile. 0 on finish tiles.
	ProgressTowardsFinish int `json:"progress_towards_finish"`
	X                     int `json:"x"`
	Y                     int `json:"y"`
}

// Track is a validated, distance-fielded grid of tiles.
type Track struct {
	Width  int           `json:"width"`
	Height int           `json:"height"`
	Layout [][]TrackTile `json:"layout"`
	// MaxProgress is the largest finite distance field value on the track,
	// used to scale distance rewards.
	MaxProgress int `json:"max_progress"`
	// UnreachableTiles lists non-start tiles that cannot reach any finish
	// tile. They are tolerated (decorative area) but worth surfacing.
	UnreachableTiles []Position `json:"unreachable_tiles,omitempty"`
}

// Position is an x,y grid coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TileAt returns the tile at (x, y). Callers must pass in-bounds coordinates.
func (t *Track) TileAt(x, y int) *TrackTile {
	return &t.Layout[y][x]
}

// InBounds reports whether (x, y) lies on the grid.
func (t *Track) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < t.Width && y < t.Height
}

// StartPositions returns every start tile coordinate in row-major order.
func (t *Track) StartPositions() []Position {
	var starts []Position
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			if t.Layout[y][x].Properties.IsStart {
				starts = append(starts, Position{X: x, Y: y})
			}
		}
	}
	return starts
}

// HistoryEntry records one tick of one car for the learning pass.
type HistoryEntry struct {
	StateHash StateHash `json:"state_hash"`
	Action    Action    `json:"action"`
	// TileBefore is the tile the car occupied when it chose the action.
	TileBefore TrackTile `json:"tile_before"`
	// TileAfter is the tile the car occupied once the tick committed.
	TileAfter TrackTile `json:"tile_after"`
	// HitWall is set when the move was rejected by terrain or the grid edge.
	HitWall bool `json:"hit_wall"`
	// Conflicted is set when a car/car collision reverted the move.
	Conflicted bool `json:"conflicted"`
	// EnteredSticky is set when the destination tile costs the next turn.
	EnteredSticky bool `json:"entered_sticky"`
	// Moved is set when the car ended the tick on a different tile.
	Moved bool `json:"moved"`
}

// CarState is the mutable per-race record of one car.
type CarState struct {
	ID   string    `json:"id"`
	Tile TrackTile `json:"tile"`
	X    int       `json:"x"`
	Y    int       `json:"y"`
	// Stuck means the car skips its next turn.
	Stuck    bool `json:"stuck"`
	Finished bool `json:"finished"`
	// StepsTaken counts tiles actually entered, including the finish tile.
	StepsTaken int    `json:"steps_taken"`
	LastAction Action `json:"last_action"`
	// ActionHistory accumulates one entry per processed tick, consumed by
	// the learning pass after the race.
	ActionHistory []HistoryEntry `json:"action_history"`
	// HitWall is reset at the top of every tick.
	HitWall bool `json:"hit_wall"`
	// CurrentSpeed is tiles per turn, re-asserted by every tile entered.
	CurrentSpeed int `json:"current_speed"`
}

// RaceState is the full mutable state of one race invocation. It is owned by
// exactly one call to Run and never shared.
type RaceState struct {
	Cars       []*CarState `json:"cars"`
	Track      *Track      `json:"-"`
	Tick       int         `json:"tick"`
	PlayByPlay []string    `json:"play_by_play"`
}

// RewardKind tags a RewardType value.
type RewardKind string

const (
	RewardRank     RewardKind = "rank"
	RewardDistance RewardKind = "distance"
	RewardStuck    RewardKind = "stuck"
	RewardWall     RewardKind = "wall"
	RewardNoMove   RewardKind = "no_move"
	RewardExplore  RewardKind = "explore"
)

// RewardType is the tagged reward produced for one recorded action.
// Magnitude is meaningful for RewardRank (the 0-based shared rank) and
// RewardDistance (the scaled closeness score); it is zero otherwise.
type RewardType struct {
	Kind      RewardKind `json:"kind"`
	Magnitude int        `json:"magnitude"`
}

// QUpdate is one Q-table update produced by a race, batched for the
// learning store. NextStateHash is nil on terminal transitions.
type QUpdate struct {
	CarID         string     `json:"car_id"`
	StateHash     StateHash  `json:"state_hash"`
	Action        Action     `json:"action"`
	Reward        RewardType `json:"reward"`
	NextStateHash *StateHash `json:"next_state_hash,omitempty"`
}

// Ranking is one entry of a race's final standings.
type Ranking struct {
	CarID      string `json:"car_id"`
	Rank       int    `json:"rank"`
	StepsTaken int    `json:"steps_taken"`
	Finished   bool   `json:"finished"`
}

// RaceResult is the complete outcome of a race. Unfinished cars are ranked
// behind finished ones, never omitted.
type RaceResult struct {
	RaceID     string    `json:"race_id"`
	TrackID    string    `json:"track_id"`
	CarIDs     []string  `json:"car_ids"`
	WinnerIDs  []string  `json:"winner_ids"`
	Rankings   []Ranking `json:"rankings"`
	Ticks      int       `json:"ticks"`
	PlayByPlay []string  `json:"play_by_play"`
}
