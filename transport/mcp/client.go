package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gridrace/gridrace/race/config"
	"github.com/gridrace/gridrace/race/engine"
	"github.com/gridrace/gridrace/race/traits"
	"github.com/gridrace/gridrace/store"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"GridRace",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`GridRace - MCP Interface

This is a thin client that proxies all requests to the REST API server.

WHAT THIS IS:
A deterministic multi-car race simulator on a 2D tile grid. Each car
carries its own Q-table and learns across races; replaying a race with
the same seed and learning disabled reproduces it tick for tick.

AVAILABLE TOOLS:
- create_track: Create a track from a config file or an inline layout
- list_tracks: List stored tracks
- get_track: Show one track as an ASCII grid
- list_track_configs: List on-disk track configs
- simulate_race: Run one race and return the result
- get_race: Full record of a past race, including play-by-play
- recent_races: Most recent race records
- get_qtable: A car's learned Q-table
- reset_qtable: Wipe a car's Q-table
- car_stats: Per-track win/finish statistics for a car
- car_traits: Deterministic cosmetic traits for a car
- race_instructions: Tile legend, reward scheme and strategy notes

TIP: run a few learning races on a track, then set learn=false with a
fixed seed to evaluate what the cars actually learned.`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Track management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_track",
		Description: "Create a track from an on-disk config (config_id) or an inline character layout",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Name of a track config file, without the .json suffix (optional)",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Track name when building from an inline layout",
				},
				"layout": map[string]interface{}{
					"type":        "array",
					"description": "Inline layout as rows of characters: S start, F finish, W wall, X sticky, B boost, . or R road",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
		},
	}, c.handleCreateTrack)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_tracks",
		Description: "List all stored tracks",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListTracks)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_track",
		Description: "Get one track rendered as an ASCII grid with its progress field",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"track_id": map[string]interface{}{
					"type":        "string",
					"description": "Track ID to retrieve",
				},
			},
			Required: []string{"track_id"},
		},
	}, c.handleGetTrack)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_track_configs",
		Description: "List the track config files available on the server",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListTrackConfigs)

	// Race operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "simulate_race",
		Description: "Run one race on a track. Learning is on unless learn=false",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"track_id": map[string]interface{}{
					"type":        "string",
					"description": "Track to race on",
				},
				"car_ids": map[string]interface{}{
					"type":        "array",
					"description": "Car IDs entering the race (1 to 8)",
					"items":       map[string]interface{}{"type": "string"},
				},
				"seed": map[string]interface{}{
					"type":        "number",
					"description": "RNG seed; omit for a random one. Same seed with learn=false replays the race exactly",
				},
				"strategy": map[string]interface{}{
					"type":        "string",
					"description": "Action selection: best, random, epsilon_greedy, softmax or epsilon_decay",
				},
				"epsilon": map[string]interface{}{
					"type":        "number",
					"description": "Exploration rate for epsilon_greedy (0 to 1)",
				},
				"temperature": map[string]interface{}{
					"type":        "number",
					"description": "Softmax temperature; higher is more random",
				},
				"encoding_mode": map[string]interface{}{
					"type":        "string",
					"description": "State encoding: exact or reduced",
				},
				"learn": map[string]interface{}{
					"type":        "boolean",
					"description": "Set false to freeze Q-tables for this race",
				},
			},
			Required: []string{"track_id", "car_ids"},
		},
	}, c.handleSimulateRace)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_race",
		Description: "Get the full record of a past race, play-by-play included",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"race_id": map[string]interface{}{
					"type":        "string",
					"description": "Race ID to retrieve",
				},
			},
			Required: []string{"race_id"},
		},
	}, c.handleGetRace)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "recent_races",
		Description: "List the most recent races, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "How many races to return (default 20)",
				},
				"track_id": map[string]interface{}{
					"type":        "string",
					"description": "Only races on this track (optional)",
				},
				"car_id": map[string]interface{}{
					"type":        "string",
					"description": "Only races this car entered (optional)",
				},
			},
		},
	}, c.handleRecentRaces)

	// Car operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_qtable",
		Description: "Get a car's learned Q-table, one row per visited state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"car_id": map[string]interface{}{
					"type":        "string",
					"description": "Car whose table to fetch",
				},
			},
			Required: []string{"car_id"},
		},
	}, c.handleGetQTable)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_qtable",
		Description: "Wipe a car's Q-table so it starts learning from scratch",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"car_id": map[string]interface{}{
					"type":        "string",
					"description": "Car whose table to reset",
				},
			},
			Required: []string{"car_id"},
		},
	}, c.handleResetQTable)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "car_stats",
		Description: "Per-track race statistics for a car, split by solo and pvp mode",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"car_id": map[string]interface{}{
					"type":        "string",
					"description": "Car whose stats to fetch",
				},
			},
			Required: []string{"car_id"},
		},
	}, c.handleCarStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "car_traits",
		Description: "Deterministic cosmetic traits rolled from the car ID",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"car_id": map[string]interface{}{
					"type":        "string",
					"description": "Car whose traits to fetch",
				},
			},
			Required: []string{"car_id"},
		},
	}, c.handleCarTraits)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "race_instructions",
		Description: "Tile legend, reward scheme and notes on reading race results",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleInstructions)
}

// GetMCPServer returns the underlying MCP server for HTTP/stdio transports
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleCreateTrack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	configID, _ := args["config_id"].(string)
	name, _ := args["name"].(string)

	body := map[string]interface{}{}
	switch {
	case configID != "":
		body["config_id"] = configID
	default:
		rows, ok := args["layout"].([]interface{})
		if !ok || len(rows) == 0 {
			return mcp.NewToolResultError("either config_id or a layout is required"), nil
		}
		if name == "" {
			return mcp.NewToolResultError("name is required with an inline layout"), nil
		}
		layout, width, err := layoutFromRows(rows)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		body["name"] = name
		body["width"] = width
		body["height"] = len(layout)
		body["layout"] = layout
	}

	var rec store.TrackRecord
	if err := c.apiCall("POST", "/api/tracks", body, &rec); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Created track: %s (%s)\n", rec.Name, rec.ID)
	fmt.Fprintf(&sb, "Size: %dx%d, max progress %d\n\n", rec.Track.Width, rec.Track.Height, rec.Track.MaxProgress)
	sb.WriteString(formatTrack(rec.Track))
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleListTracks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count  int                 `json:"count"`
		Tracks []store.TrackRecord `json:"tracks"`
	}

	if err := c.apiCall("GET", "/api/tracks", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if response.Count == 0 {
		return mcp.NewToolResultText("No tracks stored yet. Use create_track first."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Tracks (%d):\n", response.Count)
	for _, t := range response.Tracks {
		fmt.Fprintf(&sb, "- %s: %s (%dx%d)\n", t.ID, t.Name, t.Track.Width, t.Track.Height)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleGetTrack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	trackID, _ := args["track_id"].(string)

	var rec store.TrackRecord
	if err := c.apiCall("GET", "/api/tracks/"+trackID, nil, &rec); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Track: %s (%s)\n", rec.Name, rec.ID)
	fmt.Fprintf(&sb, "Size: %dx%d, max progress %d\n", rec.Track.Width, rec.Track.Height, rec.Track.MaxProgress)
	if n := len(rec.Track.UnreachableTiles); n > 0 {
		fmt.Fprintf(&sb, "Unreachable road tiles: %d\n", n)
	}
	sb.WriteString("\n")
	sb.WriteString(formatTrack(rec.Track))
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleListTrackConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count   int                      `json:"count"`
		Configs []config.TrackConfigInfo `json:"configs"`
	}

	if err := c.apiCall("GET", "/api/track-configs", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(response.Configs) == 0 {
		return mcp.NewToolResultText("No track configs on the server."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Track configs (%d):\n", len(response.Configs))
	for _, cfg := range response.Configs {
		fmt.Fprintf(&sb, "- %s: %s (%dx%d)", cfg.ConfigID, cfg.Name, cfg.Width, cfg.Height)
		if cfg.Description != "" {
			fmt.Fprintf(&sb, " - %s", cfg.Description)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleSimulateRace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})

	body := map[string]interface{}{
		"track_id": args["track_id"],
	}

	rawIDs, ok := args["car_ids"].([]interface{})
	if !ok || len(rawIDs) == 0 {
		return mcp.NewToolResultError("car_ids must be a non-empty array"), nil
	}
	carIDs := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, ok := raw.(string)
		if !ok || id == "" {
			return mcp.NewToolResultError("car_ids must contain non-empty strings"), nil
		}
		carIDs = append(carIDs, id)
	}
	body["car_ids"] = carIDs

	if seed, ok := args["seed"].(float64); ok {
		body["seed"] = uint64(seed)
	}
	if strategy, ok := args["strategy"].(string); ok && strategy != "" {
		body["strategy"] = strategy
	}
	if eps, ok := args["epsilon"].(float64); ok {
		body["epsilon"] = eps
	}
	if temp, ok := args["temperature"].(float64); ok {
		body["temperature"] = temp
	}
	if mode, ok := args["encoding_mode"].(string); ok && mode != "" {
		body["encoding_mode"] = mode
	}
	if learn, ok := args["learn"].(bool); ok {
		body["learn"] = learn
	}

	var rec store.RaceRecord
	if err := c.apiCall("POST", "/api/races", body, &rec); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRace(&rec, false)), nil
}

func (c *Client) handleGetRace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	raceID, _ := args["race_id"].(string)

	var rec store.RaceRecord
	if err := c.apiCall("GET", "/api/races/"+raceID, nil, &rec); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRace(&rec, true)), nil
}

func (c *Client) handleRecentRaces(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})

	params := url.Values{}
	if limit, ok := args["limit"].(float64); ok && limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", int(limit)))
	}
	if trackID, ok := args["track_id"].(string); ok && trackID != "" {
		params.Set("track_id", trackID)
	}
	if carID, ok := args["car_id"].(string); ok && carID != "" {
		params.Set("car_id", carID)
	}
	path := "/api/races"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var response struct {
		Count int                `json:"count"`
		Races []store.RaceRecord `json:"races"`
	}
	if err := c.apiCall("GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if response.Count == 0 {
		return mcp.NewToolResultText("No races recorded yet."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Recent races (%d):\n", response.Count)
	for _, r := range response.Races {
		winners := strings.Join(r.WinnerIDs, ", ")
		if winners == "" {
			winners = "none"
		}
		fmt.Fprintf(&sb, "- %s: track %s, %d cars, %d ticks, winners: %s\n",
			r.ID, r.TrackID, len(r.CarIDs), r.Ticks, winners)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleGetQTable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	carID, _ := args["car_id"].(string)

	var view struct {
		CarID  string                             `json:"car_id"`
		States int                                `json:"states"`
		Rows   map[string][engine.ActionCount]int `json:"rows"`
	}
	if err := c.apiCall("GET", "/api/cars/"+carID+"/qtable", nil, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Q-table for %s: %d states\n", view.CarID, view.States)
	if view.States > 0 {
		states := make([]string, 0, len(view.Rows))
		for s := range view.Rows {
			states = append(states, s)
		}
		sort.Strings(states)

		// Cap the dump; big tables are better inspected via the API.
		const maxRows = 50
		shown := states
		if len(shown) > maxRows {
			shown = shown[:maxRows]
		}
		sb.WriteString("state (prefix)      up   down   left  right   stay\n")
		for _, s := range shown {
			row := view.Rows[s]
			fmt.Fprintf(&sb, "%s  %5d  %5d  %5d  %5d  %5d\n",
				s[:16], row[0], row[1], row[2], row[3], row[4])
		}
		if len(states) > maxRows {
			fmt.Fprintf(&sb, "... %d more states\n", len(states)-maxRows)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleResetQTable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	carID, _ := args["car_id"].(string)

	if err := c.apiCall("DELETE", "/api/cars/"+carID+"/qtable", nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Q-table for %s reset.", carID)), nil
}

func (c *Client) handleCarStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	carID, _ := args["car_id"].(string)

	var response struct {
		CarID string           `json:"car_id"`
		Stats []store.CarStats `json:"stats"`
	}
	if err := c.apiCall("GET", "/api/cars/"+carID+"/stats", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(response.Stats) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No races recorded for %s.", carID)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Stats for %s:\n", carID)
	for _, s := range response.Stats {
		fmt.Fprintf(&sb, "- track %s [%s]: %d races, %d wins, %d finishes",
			s.TrackID, s.Mode, s.Races, s.Wins, s.Finishes)
		if s.BestSteps > 0 {
			fmt.Fprintf(&sb, ", best %d steps", s.BestSteps)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleCarTraits(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	carID, _ := args["car_id"].(string)

	var tr traits.Traits
	if err := c.apiCall("GET", "/api/cars/"+carID+"/traits", nil, &tr); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Traits for %s (%s, score %d):\n", tr.CarID, tr.Rarity, tr.RarityScore)
	fmt.Fprintf(&sb, "- Chassis: %s\n", tr.Chassis)
	fmt.Fprintf(&sb, "- Color: %s\n", tr.Color)
	fmt.Fprintf(&sb, "- Livery: %s\n", tr.Livery)
	fmt.Fprintf(&sb, "- Wheels: %s\n", tr.Wheels)
	fmt.Fprintf(&sb, "- Spoiler: %s\n", tr.Spoiler)
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(`GRIDRACE INSTRUCTIONS

TILE LEGEND (ASCII rendering):
  S  start tile (cars are placed here, wrapping in order)
  F  finish tile (reaching one ends that car's race)
  #  wall (blocks movement; hitting one costs the car its turn)
  ~  sticky tile (entering it skips the car's next turn)
  >  boost tile (raises movement speed while on it)
  .  plain road
  !  road tile no start can reach

MOVEMENT:
Each tick every car picks up/down/left/right/stay and jumps its full
speed in that direction in one step. Tiles in between are not touched.
A move off the grid or into a wall keeps the car in place and counts
as a wall hit. Two cars aiming at the same tile both stay put.

LEARNING:
Each car keeps a private Q-table keyed by a hash of its surroundings.
After every race the car replays its history and updates the table:
finishing pays by rank (100/50/25/10), otherwise the payout shrinks
with distance to the finish. Wall hits, sticky tiles and wasted turns
are penalized.

EVALUATING:
Pass learn=false and a fixed seed to simulate_race for a reproducible
race that reads the tables without changing them.`), nil
}

// Formatting helpers

// layoutFromRows converts inline character rows to tile properties.
func layoutFromRows(rows []interface{}) ([][]engine.TileProperties, int, error) {
	layout := make([][]engine.TileProperties, 0, len(rows))
	width := -1
	for y, raw := range rows {
		row, ok := raw.(string)
		if !ok {
			return nil, 0, fmt.Errorf("layout row %d is not a string", y)
		}
		if width == -1 {
			width = len(row)
		} else if len(row) != width {
			return nil, 0, fmt.Errorf("layout row %d has %d cells, want %d", y, len(row), width)
		}

		tiles := make([]engine.TileProperties, 0, len(row))
		for x, ch := range row {
			switch ch {
			case 'S':
				tiles = append(tiles, engine.StartTile())
			case 'F':
				tiles = append(tiles, engine.FinishTile())
			case 'W', '#':
				tiles = append(tiles, engine.WallTile())
			case 'X', '~':
				tiles = append(tiles, engine.StickyTile())
			case 'B', '>':
				tiles = append(tiles, engine.BoostTile(engine.BoostSpeed))
			case 'R', '.':
				tiles = append(tiles, engine.NormalTile())
			default:
				return nil, 0, fmt.Errorf("layout row %d has unknown tile %q at column %d", y, string(ch), x)
			}
		}
		layout = append(layout, tiles)
	}
	return layout, width, nil
}

func tileChar(t engine.TrackTile) byte {
	switch {
	case t.Properties.IsStart:
		return 'S'
	case t.Properties.IsFinish:
		return 'F'
	case t.Properties.BlocksMovement:
		return '#'
	case t.Properties.SkipNextTurn:
		return '~'
	case t.Properties.SpeedModifier > engine.DefaultSpeed:
		return '>'
	case t.ProgressTowardsFinish < 0:
		return '!'
	default:
		return '.'
	}
}

func formatTrack(track *engine.Track) string {
	var sb strings.Builder
	for y := 0; y < track.Height; y++ {
		for x := 0; x < track.Width; x++ {
			sb.WriteByte(tileChar(track.Layout[y][x]))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatRace(rec *store.RaceRecord, playByPlay bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Race %s on track %s\n", rec.ID, rec.TrackID)
	fmt.Fprintf(&sb, "Seed: %d, ticks: %d\n\n", rec.Seed, rec.Ticks)

	sb.WriteString("Rankings:\n")
	for _, r := range rec.Rankings {
		if r.Finished {
			fmt.Fprintf(&sb, "%d. %s - finished in %d steps\n", r.Rank, r.CarID, r.StepsTaken)
		} else {
			fmt.Fprintf(&sb, "%d. %s - did not finish\n", r.Rank, r.CarID)
		}
	}

	if len(rec.TickStats) > 0 {
		sb.WriteString("\nTick stats:\n")
		for _, s := range rec.TickStats {
			fmt.Fprintf(&sb, "- %s: %d moves (%d toward finish), %d wall hits, %d stuck turns, %d collisions, %d no-moves\n",
				s.CarID, s.Moves, s.OptimalMoves, s.WallHits, s.StuckTurns, s.Collisions, s.NoMoves)
		}
	}

	if playByPlay && len(rec.PlayByPlay) > 0 {
		sb.WriteString("\nPlay-by-play:\n")
		for _, line := range rec.PlayByPlay {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
