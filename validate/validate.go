// Command validate provides a small CLI that validates track configuration
// JSON files. It checks:
//   - JSON structure against the track config schema
//   - Grid consistency and known legend characters
//   - Presence of at least one start (S) and one finish (F)
//   - Connectivity: every start tile can reach a finish tile
//
// It prints a concise per-file report and exits non-zero if any config is
// invalid, so it can run in CI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gridrace/gridrace/race/config"
	"github.com/gridrace/gridrace/race/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateTrack loads and validates a single track config file. It runs the
// JSON schema check, then builds the track, which proves legend consistency
// and start-to-finish connectivity.
func validateTrack(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	cfg, err := config.ParseTrackConfig(data)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid config: %v", err))
		return result
	}

	track, err := cfg.Build()
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, buildErrorMessage(err))
		return result
	}

	starts := track.StartPositions()
	finishes := 0
	walls := 0
	for y := 0; y < track.Height; y++ {
		for x := 0; x < track.Width; x++ {
			p := track.Layout[y][x].Properties
			if p.IsFinish {
				finishes++
			}
			if p.BlocksMovement {
				walls++
			}
		}
	}

	result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", cfg.Name))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Grid: %dx%d", track.Width, track.Height))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Start tiles: %d", len(starts)))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Finish tiles: %d", finishes))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Walls: %d", walls))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Max progress: %d", track.MaxProgress))

	if n := len(track.UnreachableTiles); n > 0 {
		// Dead pockets are legal but worth flagging to the track author.
		result.Errors = append(result.Errors, fmt.Sprintf("! %d road tiles cannot reach the finish", n))
	} else {
		result.Errors = append(result.Errors, "✓ Connectivity: every road tile can reach the finish")
	}

	return result
}

// buildErrorMessage turns track build errors into actionable report lines.
func buildErrorMessage(err error) string {
	var pathErr *engine.NoAccessiblePathError
	if errors.As(err, &pathErr) {
		return fmt.Sprintf("Connectivity failure: start at (%d,%d) cannot reach any finish", pathErr.X, pathErr.Y)
	}
	if errors.Is(err, engine.ErrNoStartTile) {
		return "Must have at least 1 start (S) tile"
	}
	if errors.Is(err, engine.ErrNoFinishTile) {
		return "Must have at least 1 finish (F) tile"
	}
	return fmt.Sprintf("Invalid track: %v", err)
}

// main scans the tracks directory for *.json files and validates each one,
// printing a concise report and exiting with non-zero status if any are
// invalid.
func main() {
	trackDir := "tracks"
	if len(os.Args) > 1 {
		trackDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(trackDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding track configs: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No track configs found in %s\n", trackDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateTrack(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All track configs are valid!")
	} else {
		fmt.Println("❌ Some track configs have errors")
		os.Exit(1)
	}
}
