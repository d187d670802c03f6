package engine

import (
	"errors"
	"testing"
)

// layoutFromStrings builds a tile grid from an ASCII sketch:
// R road, W wall, S start, F finish, X sticky, B boost, 1 slow road.
func layoutFromStrings(t *testing.T, rows []string) [][]TileProperties {
	t.Helper()
	layout := make([][]TileProperties, len(rows))
	for y, row := range rows {
		layout[y] = make([]TileProperties, len(row))
		for x, c := range row {
			switch c {
			case 'R':
				layout[y][x] = NormalTile()
			case 'W':
				layout[y][x] = WallTile()
			case 'S':
				layout[y][x] = StartTile()
			case 'F':
				layout[y][x] = FinishTile()
			case 'X':
				layout[y][x] = StickyTile()
			case 'B':
				layout[y][x] = BoostTile(BoostSpeed)
			case '1':
				layout[y][x] = BoostTile(1)
			default:
				t.Fatalf("unknown layout char %q", c)
			}
		}
	}
	return layout
}

func buildTestTrack(t *testing.T, rows []string) *Track {
	t.Helper()
	track, err := BuildTrack(len(rows[0]), len(rows), layoutFromStrings(t, rows))
	if err != nil {
		t.Fatalf("BuildTrack failed: %v", err)
	}
	return track
}

func TestBuildTrack_SizeLimits(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{"too narrow", 2, 5},
		{"too short", 5, 2},
		{"too wide", 51, 5},
		{"too tall", 5, 51},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			layout := make([][]TileProperties, test.height)
			for y := range layout {
				layout[y] = make([]TileProperties, test.width)
				for x := range layout[y] {
					layout[y][x] = NormalTile()
				}
			}
			_, err := BuildTrack(test.width, test.height, layout)
			var sizeErr *TrackSizeError
			if !errors.As(err, &sizeErr) {
				t.Errorf("Expected TrackSizeError, got %v", err)
			}
		})
	}
}

func TestBuildTrack_MissingTiles(t *testing.T) {
	_, err := BuildTrack(3, 3, layoutFromStrings(t, []string{
		"SRR",
		"RRR",
		"RRR",
	}))
	if !errors.Is(err, ErrNoFinishTile) {
		t.Errorf("Expected ErrNoFinishTile, got %v", err)
	}

	_, err = BuildTrack(3, 3, layoutFromStrings(t, []string{
		"RRR",
		"RRR",
		"RRF",
	}))
	if !errors.Is(err, ErrNoStartTile) {
		t.Errorf("Expected ErrNoStartTile, got %v", err)
	}
}

func TestBuildTrack_DimensionMismatch(t *testing.T) {
	layout := layoutFromStrings(t, []string{
		"SRF",
		"RRR",
	})
	_, err := BuildTrack(3, 3, layout)
	var dimErr *DimensionMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatalf("Expected DimensionMismatchError, got %v", err)
	}
	if dimErr.Expected != 3 || dimErr.Actual != 2 {
		t.Errorf("Expected row count mismatch 3 vs 2, got %d vs %d", dimErr.Expected, dimErr.Actual)
	}

	layout = layoutFromStrings(t, []string{
		"SRF",
		"RR",
		"RRR",
	})
	_, err = BuildTrack(3, 3, layout)
	if !errors.As(err, &dimErr) {
		t.Fatalf("Expected DimensionMismatchError, got %v", err)
	}
	if dimErr.Row != 1 {
		t.Errorf("Expected mismatch on row 1, got row %d", dimErr.Row)
	}
}

func TestBuildTrack_BlockedFinishRejected(t *testing.T) {
	// A blocking finish would seed the distance field yet reject every
	// entry, so the builder refuses it outright.
	layout := layoutFromStrings(t, []string{
		"SRR",
		"RRR",
		"RRF",
	})
	layout[2][2].BlocksMovement = true

	_, err := BuildTrack(3, 3, layout)
	var finishErr *BlockedFinishError
	if !errors.As(err, &finishErr) {
		t.Fatalf("Expected BlockedFinishError, got %v", err)
	}
	if finishErr.X != 2 || finishErr.Y != 2 {
		t.Errorf("Expected blocked finish at (2,2), got (%d,%d)", finishErr.X, finishErr.Y)
	}
}

func TestBuildTrack_WalledOffStart(t *testing.T) {
	_, err := BuildTrack(4, 3, layoutFromStrings(t, []string{
		"SWRF",
		"WWRR",
		"RRRR",
	}))
	var pathErr *NoAccessiblePathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("Expected NoAccessiblePathError, got %v", err)
	}
	if pathErr.X != 0 || pathErr.Y != 0 {
		t.Errorf("Expected blocked start at (0,0), got (%d,%d)", pathErr.X, pathErr.Y)
	}
}

func TestBuildTrack_DistanceField(t *testing.T) {
	track := buildTestTrack(t, []string{
		"SRR",
		"WWR",
		"FRR",
	})

	// Path from the start must route around the wall row.
	expected := [][]int{
		{6, 5, 4},
		{-1, -1, 3},
		{0, 1, 2},
	}
	for y, row := range expected {
		for x, want := range row {
			got := track.TileAt(x, y).ProgressTowardsFinish
			if got != want {
				t.Errorf("Distance at (%d,%d): expected %d, got %d", x, y, want, got)
			}
		}
	}
	if track.MaxProgress != 6 {
		t.Errorf("Expected max progress 6, got %d", track.MaxProgress)
	}
}

// searchDistance measures one tile's distance to the nearest finish with
// its own breadth-first search, independent of the builder's flood.
func searchDistance(layout [][]TileProperties, width, height, sx, sy int) int {
	type cell struct{ x, y, d int }
	visited := make([][]bool, height)
	for y := range visited {
		visited[y] = make([]bool, width)
	}
	queue := []cell{{sx, sy, 0}}
	visited[sy][sx] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if layout[cur.y][cur.x].IsFinish {
			return cur.d
		}
		for _, d := range [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
			nx, ny := cur.x+d[0], cur.y+d[1]
			if nx < 0 || ny < 0 || nx >= width || ny >= height {
				continue
			}
			if visited[ny][nx] || layout[ny][nx].BlocksMovement {
				continue
			}
			visited[ny][nx] = true
			queue = append(queue, cell{nx, ny, cur.d + 1})
		}
	}
	return -1
}

func TestBuildTrack_DistanceFieldMatchesPerTileSearch(t *testing.T) {
	grids := [][]string{
		{
			"SRR",
			"WWR",
			"FRR",
		},
		{
			"SRRF",
			"RRWW",
			"RRWR",
		},
		{
			"FRSRF",
			"RWRWR",
			"RRXRR",
			"RWBWR",
			"RRRRR",
		},
	}

	for _, rows := range grids {
		layout := layoutFromStrings(t, rows)
		width, height := len(rows[0]), len(rows)
		track, err := BuildTrack(width, height, layout)
		if err != nil {
			t.Fatalf("BuildTrack failed for %v: %v", rows, err)
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				if layout[y][x].BlocksMovement {
					continue
				}
				want := searchDistance(layout, width, height, x, y)
				if got := track.TileAt(x, y).ProgressTowardsFinish; got != want {
					t.Errorf("Distance at (%d,%d) of %v: field says %d, search says %d",
						x, y, rows, got, want)
				}
			}
		}
	}
}

func TestBuildTrack_MultipleFinishTilesFloodTogether(t *testing.T) {
	track := buildTestTrack(t, []string{
		"FRS",
		"RRR",
		"RRF",
	})

	// Each tile takes the distance to its nearest finish.
	if got := track.TileAt(2, 0).ProgressTowardsFinish; got != 2 {
		t.Errorf("Expected start distance 2, got %d", got)
	}
	if got := track.TileAt(1, 1).ProgressTowardsFinish; got != 2 {
		t.Errorf("Expected center distance 2, got %d", got)
	}
	if got := track.TileAt(2, 1).ProgressTowardsFinish; got != 1 {
		t.Errorf("Expected (2,1) distance 1, got %d", got)
	}
}

func TestBuildTrack_UnreachablePocketTolerated(t *testing.T) {
	track := buildTestTrack(t, []string{
		"SRRF",
		"RRWW",
		"RRWR",
	})

	if len(track.UnreachableTiles) != 1 {
		t.Fatalf("Expected 1 unreachable tile, got %d", len(track.UnreachableTiles))
	}
	pocket := track.UnreachableTiles[0]
	if pocket.X != 3 || pocket.Y != 2 {
		t.Errorf("Expected pocket at (3,2), got (%d,%d)", pocket.X, pocket.Y)
	}
	if track.TileAt(3, 2).ProgressTowardsFinish != -1 {
		t.Errorf("Expected unreachable marker -1, got %d", track.TileAt(3, 2).ProgressTowardsFinish)
	}
}

func TestTrack_StartPositionsRowMajor(t *testing.T) {
	track := buildTestTrack(t, []string{
		"RSR",
		"SRF",
		"RSR",
	})

	starts := track.StartPositions()
	want := []Position{{1, 0}, {0, 1}, {1, 2}}
	if len(starts) != len(want) {
		t.Fatalf("Expected %d starts, got %d", len(want), len(starts))
	}
	for i, pos := range want {
		if starts[i] != pos {
			t.Errorf("Start %d: expected (%d,%d), got (%d,%d)", i, pos.X, pos.Y, starts[i].X, starts[i].Y)
		}
	}
}
