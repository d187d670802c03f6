package engine

import (
	"errors"
	"fmt"
)

// Validation errors returned by BuildTrack.
var (
	ErrNoFinishTile = errors.New("track has no finish tile")
	ErrNoStartTile  = errors.New("track has no start tile")
)

// NoAccessiblePathError reports a start tile with no route to any finish.
type NoAccessiblePathError struct {
	X, Y int
}

func (e *NoAccessiblePathError) Error() string {
	return fmt.Sprintf("no accessible path from start tile (%d,%d) to any finish tile", e.X, e.Y)
}

// BlockedFinishError reports a tile that is both a finish and a wall. Such
// a tile would seed the distance field while rejecting every entry attempt.
type BlockedFinishError struct {
	X, Y int
}

func (e *BlockedFinishError) Error() string {
	return fmt.Sprintf("finish tile (%d,%d) blocks movement", e.X, e.Y)
}

// TrackSizeError reports grid dimensions outside the allowed range.
type TrackSizeError struct {
	Width, Height int
}

func (e *TrackSizeError) Error() string {
	return fmt.Sprintf("track size %dx%d outside allowed range %dx%d to %dx%d",
		e.Width, e.Height, MinTrackSize, MinTrackSize, MaxTrackSize, MaxTrackSize)
}

// DimensionMismatchError reports a layout row whose length disagrees with
// the declared width, or a layout whose row count disagrees with the height.
type DimensionMismatchError struct {
	Row      int
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("layout has %d rows, expected %d", e.Actual, e.Expected)
	}
	return fmt.Sprintf("layout row %d has %d tiles, expected %d", e.Row, e.Actual, e.Expected)
}

// unreachable is the distance value for tiles with no path to a finish.
const unreachable = -1

// BuildTrack validates a tile grid and computes its distance field in one
// pass. The returned track is immutable from the caller's point of view.
//
// The distance field is a single multi-source BFS flooding outward from
// every finish tile at once, so building is linear in the tile count.
func BuildTrack(width, height int, layout [][]TileProperties) (*Track, error) {
	if width < MinTrackSize || width > MaxTrackSize || height < MinTrackSize || height > MaxTrackSize {
		return nil, &TrackSizeError{Width: width, Height: height}
	}
	if len(layout) != height {
		return nil, &DimensionMismatchError{Row: -1, Expected: height, Actual: len(layout)}
	}
	for y, row := range layout {
		if len(row) != width {
			return nil, &DimensionMismatchError{Row: y, Expected: width, Actual: len(row)}
		}
	}

	track := &Track{
		Width:  width,
		Height: height,
		Layout: make([][]TrackTile, height),
	}

	hasFinish := false
	hasStart := false
	var queue []Position
	for y := 0; y < height; y++ {
		track.Layout[y] = make([]TrackTile, width)
		for x := 0; x < width; x++ {
			props := layout[y][x]
			dist := unreachable
			if props.IsFinish {
				if props.BlocksMovement {
					return nil, &BlockedFinishError{X: x, Y: y}
				}
				hasFinish = true
				dist = 0
				queue = append(queue, Position{X: x, Y: y})
			}
			if props.IsStart {
				hasStart = true
			}
			track.Layout[y][x] = TrackTile{
				Properties:            props,
				ProgressTowardsFinish: dist,
				X:                     x,
				Y:                     y,
			}
		}
	}
	if !hasFinish {
		return nil, ErrNoFinishTile
	}
	if !hasStart {
		return nil, ErrNoStartTile
	}

	// Flood from all finish tiles at once. Walls neither receive a
	// distance nor propagate one.
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		next := track.Layout[cur.Y][cur.X].ProgressTowardsFinish + 1
		for _, d := range [4]Position{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
			nx, ny := cur.X+d.X, cur.Y+d.Y
			if !track.InBounds(nx, ny) {
				continue
			}
			tile := &track.Layout[ny][nx]
			if tile.Properties.BlocksMovement || tile.ProgressTowardsFinish != unreachable {
				continue
			}
			tile.ProgressTowardsFinish = next
			queue = append(queue, Position{X: nx, Y: ny})
		}
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			tile := &track.Layout[y][x]
			if tile.Properties.BlocksMovement {
				continue
			}
			if tile.ProgressTowardsFinish == unreachable {
				if tile.Properties.IsStart {
					return nil, &NoAccessiblePathError{X: x, Y: y}
				}
				track.UnreachableTiles = append(track.UnreachableTiles, Position{X: x, Y: y})
				continue
			}
			if tile.ProgressTowardsFinish > track.MaxProgress {
				track.MaxProgress = tile.ProgressTowardsFinish
			}
		}
	}

	return track, nil
}
