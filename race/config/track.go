package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/gridrace/gridrace/race/engine"
)

// TrackConfig is the on-disk JSON form of a track: an ASCII layout plus a
// legend mapping each character to a tile kind. Speeds can be overridden
// per character.
type TrackConfig struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Layout      []string          `json:"layout"`
	Legend      map[string]string `json:"legend"`
	Speeds      map[string]int    `json:"speeds,omitempty"`
}

// Tile kinds accepted in a legend.
const (
	KindRoad   = "road"
	KindWall   = "wall"
	KindStart  = "start"
	KindFinish = "finish"
	KindSticky = "sticky"
	KindBoost  = "boost"
)

const trackSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["name", "layout", "legend"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"description": {"type": "string"},
		"layout": {
			"type": "array",
			"minItems": 3,
			"maxItems": 50,
			"items": {"type": "string", "minLength": 3, "maxLength": 50}
		},
		"legend": {
			"type": "object",
			"minProperties": 1,
			"additionalProperties": {
				"enum": ["road", "wall", "start", "finish", "sticky", "boost"]
			}
		},
		"speeds": {
			"type": "object",
			"additionalProperties": {"type": "integer", "minimum": 1, "maximum": 5}
		}
	}
}`

var compiledTrackSchema = jsonschema.MustCompileString("track.schema.json", trackSchema)

// ParseTrackConfig validates raw JSON against the track schema and decodes
// it. Schema violations come back before any tile-level validation runs.
func ParseTrackConfig(raw []byte) (*TrackConfig, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse track config: %w", err)
	}
	if err := compiledTrackSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("track config schema: %w", err)
	}
	var cfg TrackConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse track config: %w", err)
	}
	return &cfg, nil
}

// defaultSpeeds per tile kind when no override is given.
var defaultSpeeds = map[string]int{
	KindRoad:   engine.DefaultSpeed,
	KindWall:   engine.DefaultSpeed,
	KindStart:  engine.DefaultSpeed,
	KindFinish: engine.DefaultSpeed,
	KindSticky: engine.DefaultSpeed,
	KindBoost:  engine.BoostSpeed,
}

// Build expands the ASCII layout into a validated track.
func (c *TrackConfig) Build() (*engine.Track, error) {
	if len(c.Layout) == 0 {
		return nil, fmt.Errorf("track %q has an empty layout", c.Name)
	}
	width := len(c.Layout[0])
	height := len(c.Layout)

	layout := make([][]engine.TileProperties, height)
	for y, row := range c.Layout {
		layout[y] = make([]engine.TileProperties, 0, width)
		for x, ch := range strings.Split(row, "") {
			kind, ok := c.Legend[ch]
			if !ok {
				return nil, fmt.Errorf("track %q: character %q at (%d,%d) missing from legend", c.Name, ch, x, y)
			}
			props, err := tileFor(kind, c.Speeds[ch])
			if err != nil {
				return nil, fmt.Errorf("track %q: %w", c.Name, err)
			}
			layout[y] = append(layout[y], props)
		}
	}
	return engine.BuildTrack(width, height, layout)
}

func tileFor(kind string, speedOverride int) (engine.TileProperties, error) {
	speed := defaultSpeeds[kind]
	if speedOverride > 0 {
		speed = speedOverride
	}
	switch kind {
	case KindRoad:
		return engine.TileProperties{SpeedModifier: speed}, nil
	case KindWall:
		return engine.TileProperties{SpeedModifier: speed, BlocksMovement: true}, nil
	case KindStart:
		return engine.TileProperties{SpeedModifier: speed, IsStart: true}, nil
	case KindFinish:
		return engine.TileProperties{SpeedModifier: speed, IsFinish: true}, nil
	case KindSticky:
		return engine.TileProperties{SpeedModifier: speed, SkipNextTurn: true}, nil
	case KindBoost:
		return engine.TileProperties{SpeedModifier: speed}, nil
	}
	return engine.TileProperties{}, fmt.Errorf("unknown tile kind %q", kind)
}
