package service

import (
	"github.com/gridrace/gridrace/race/engine"
)

// CreateTrackRequest creates a track from an explicit tile grid.
type CreateTrackRequest struct {
	Name   string                    `json:"name"`
	Width  int                       `json:"width"`
	Height int                       `json:"height"`
	Layout [][]engine.TileProperties `json:"layout"`
}

// SimulateRaceRequest runs one race. Optional fields fall back to the
// server defaults; a nil seed draws a fresh random one.
type SimulateRaceRequest struct {
	TrackID string   `json:"track_id"`
	CarIDs  []string `json:"car_ids"`
	Seed    *uint64  `json:"seed,omitempty"`

	Strategy     string   `json:"strategy,omitempty"`
	Epsilon      *float64 `json:"epsilon,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	EncodingMode string   `json:"encoding_mode,omitempty"`

	// Learn disabled freezes the Q-tables: the race still reads them but
	// writes nothing back. Evaluation races set this to false.
	Learn *bool `json:"learn,omitempty"`
}

// QTableView is one car's learned table as served over the API.
type QTableView struct {
	CarID  string                             `json:"car_id"`
	States int                                `json:"states"`
	Rows   map[string][engine.ActionCount]int `json:"rows"`
}
