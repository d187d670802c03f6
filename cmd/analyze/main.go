// Command analyze prints quick, human-readable diagnostics about track config
// files. It validates each config, builds the track, and reports dimensions,
// tile counts, the progress field from the finish line, and any road tiles no
// start position can reach.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gridrace/gridrace/race/config"
	"github.com/gridrace/gridrace/race/engine"
)

func main() {
	dir := "tracks"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", dir, err)
		os.Exit(1)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		fmt.Printf("No track configs found in %s\n", dir)
		return
	}

	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", file)
		analyzeTrack(filepath.Join(dir, file))
	}
}

func analyzeTrack(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		return
	}

	cfg, err := config.ParseTrackConfig(data)
	if err != nil {
		fmt.Printf("Error parsing config: %v\n", err)
		return
	}

	fmt.Printf("Name: %s\n", cfg.Name)
	if cfg.Description != "" {
		fmt.Printf("Description: %s\n", cfg.Description)
	}

	track, err := cfg.Build()
	if err != nil {
		fmt.Printf("Error building track: %v\n", err)
		return
	}

	fmt.Printf("Size: %d x %d\n", track.Width, track.Height)
	fmt.Printf("Max progress: %d\n", track.MaxProgress)

	starts := track.StartPositions()
	fmt.Printf("Start tiles: %d\n", len(starts))

	counts := tileCounts(track)
	fmt.Printf("Finish tiles: %d\n", counts.finish)
	fmt.Printf("Walls: %d, sticky: %d, boost: %d\n", counts.wall, counts.sticky, counts.boost)

	if n := len(track.UnreachableTiles); n > 0 {
		fmt.Printf("WARNING: %d road tiles cannot reach the finish\n", n)
		shown := track.UnreachableTiles
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, p := range shown {
			fmt.Printf("   unreachable: (%d, %d)\n", p.X, p.Y)
		}
		if n > 5 {
			fmt.Printf("   ... and %d more\n", n-5)
		}
	} else {
		fmt.Printf("All road tiles can reach the finish\n")
	}

	fmt.Printf("\nProgress field (distance from finish, # wall, ! unreachable):\n")
	fmt.Print(renderProgress(track))
}

type counts struct {
	finish int
	wall   int
	sticky int
	boost  int
}

func tileCounts(track *engine.Track) counts {
	var c counts
	for y := 0; y < track.Height; y++ {
		for x := 0; x < track.Width; x++ {
			p := track.Layout[y][x].Properties
			switch {
			case p.IsFinish:
				c.finish++
			case p.BlocksMovement:
				c.wall++
			case p.SkipNextTurn:
				c.sticky++
			case p.SpeedModifier > engine.DefaultSpeed:
				c.boost++
			}
		}
	}
	return c
}

// renderProgress prints the remaining-distance field, one cell per tile.
// Cell width grows with the largest distance so columns stay aligned.
func renderProgress(track *engine.Track) string {
	width := len(fmt.Sprint(track.MaxProgress))
	if width < 2 {
		width = 2
	}

	var sb strings.Builder
	for y := 0; y < track.Height; y++ {
		for x := 0; x < track.Width; x++ {
			tile := track.Layout[y][x]
			switch {
			case tile.Properties.BlocksMovement:
				fmt.Fprintf(&sb, "%*s", width+1, "#")
			case tile.ProgressTowardsFinish < 0:
				fmt.Fprintf(&sb, "%*s", width+1, "!")
			default:
				fmt.Fprintf(&sb, "%*d", width+1, tile.ProgressTowardsFinish)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
