package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gridrace/gridrace/race/engine"
	"github.com/gridrace/gridrace/store"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL)

	if client == nil {
		t.Fatal("Expected client to be created")
	}

	if client.baseURL != baseURL {
		t.Errorf("Expected baseURL %s, got %s", baseURL, client.baseURL)
	}

	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}

	if client.mcpServer == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	expectedResponse := map[string]interface{}{
		"id":    "trk_1",
		"name":  "Oval",
		"count": float64(2),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(expectedResponse)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response map[string]interface{}
	err := client.apiCall("GET", "/api/tracks", nil, &response)
	if err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}

	if response["id"] != expectedResponse["id"] {
		t.Errorf("Expected id %v, got %v", expectedResponse["id"], response["id"])
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://invalid-url-that-does-not-exist:9999")

	err := client.apiCall("GET", "/api/tracks", nil, nil)
	if err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.apiCall("GET", "/api/tracks", nil, nil)
	if err == nil {
		t.Error("Expected error for HTTP 500 response")
	}

	if !strings.Contains(err.Error(), "API error") {
		t.Errorf("Expected 'API error' in error message, got: %v", err)
	}
}

func TestClient_apiCall_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "track not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.apiCall("GET", "/api/tracks/missing", nil, nil)
	if err == nil {
		t.Fatal("Expected error for HTTP 404 response")
	}

	if err.Error() != "track not found" {
		t.Errorf("Expected the server's error message, got: %v", err)
	}
}

func TestClient_handleCreateTrack_Inline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/tracks" {
			t.Errorf("Expected POST /api/tracks, got %s %s", r.Method, r.URL.Path)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if body["name"] != "Corridor" {
			t.Errorf("Expected name Corridor, got %v", body["name"])
		}
		if body["width"] != float64(5) || body["height"] != float64(3) {
			t.Errorf("Expected 5x3 layout, got %vx%v", body["width"], body["height"])
		}

		track, err := engine.BuildTrack(5, 3, corridorLayout())
		if err != nil {
			t.Fatalf("build track: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(store.TrackRecord{ID: "trk_1", Name: "Corridor", Track: track})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name: "create_track",
			Arguments: map[string]interface{}{
				"name": "Corridor",
				"layout": []interface{}{
					"WWWWW",
					"S...F",
					"WWWWW",
				},
			},
		},
	}

	result, err := client.handleCreateTrack(context.Background(), request)
	if err != nil {
		t.Fatalf("handleCreateTrack failed: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "Created track: Corridor (trk_1)") {
		t.Errorf("Expected creation header in result, got: %s", text)
	}
	if !strings.Contains(text, "S...F") {
		t.Errorf("Expected rendered grid in result, got: %s", text)
	}
}

func TestClient_handleCreateTrack_MissingArgs(t *testing.T) {
	client := NewClient("http://localhost:8080")
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "create_track",
			Arguments: map[string]interface{}{},
		},
	}

	result, err := client.handleCreateTrack(context.Background(), request)
	if err != nil {
		t.Fatalf("handleCreateTrack failed: %v", err)
	}
	if !result.IsError {
		t.Error("Expected error result without config_id or layout")
	}
}

func TestClient_handleSimulateRace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/races" {
			t.Errorf("Expected POST /api/races, got %s %s", r.Method, r.URL.Path)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if body["track_id"] != "trk_1" {
			t.Errorf("Expected track_id trk_1, got %v", body["track_id"])
		}
		if body["seed"] != float64(42) {
			t.Errorf("Expected seed 42, got %v", body["seed"])
		}
		if body["learn"] != false {
			t.Errorf("Expected learn=false, got %v", body["learn"])
		}

		rec := store.RaceRecord{
			ID:        "race_1",
			TrackID:   "trk_1",
			CarIDs:    []string{"ada", "bolt"},
			WinnerIDs: []string{"ada"},
			Rankings: []engine.Ranking{
				{CarID: "ada", Rank: 1, StepsTaken: 4, Finished: true},
				{CarID: "bolt", Rank: 2, Finished: false},
			},
			Ticks: 4,
			Seed:  42,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(rec)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name: "simulate_race",
			Arguments: map[string]interface{}{
				"track_id": "trk_1",
				"car_ids":  []interface{}{"ada", "bolt"},
				"seed":     float64(42),
				"learn":    false,
			},
		},
	}

	result, err := client.handleSimulateRace(context.Background(), request)
	if err != nil {
		t.Fatalf("handleSimulateRace failed: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "1. ada - finished in 4 steps") {
		t.Errorf("Expected ranking line in result, got: %s", text)
	}
	if !strings.Contains(text, "2. bolt - did not finish") {
		t.Errorf("Expected DNF line in result, got: %s", text)
	}
}

func TestClient_handleSimulateRace_BadCarIDs(t *testing.T) {
	client := NewClient("http://localhost:8080")
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name: "simulate_race",
			Arguments: map[string]interface{}{
				"track_id": "trk_1",
				"car_ids":  []interface{}{},
			},
		},
	}

	result, err := client.handleSimulateRace(context.Background(), request)
	if err != nil {
		t.Fatalf("handleSimulateRace failed: %v", err)
	}
	if !result.IsError {
		t.Error("Expected error result for empty car_ids")
	}
}

func TestClient_handleInstructions(t *testing.T) {
	client := NewClient("http://localhost:8080")
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "race_instructions",
			Arguments: map[string]interface{}{},
		},
	}

	result, err := client.handleInstructions(context.Background(), request)
	if err != nil {
		t.Fatalf("handleInstructions failed: %v", err)
	}

	text := resultText(t, result)
	expectedContent := []string{
		"GRIDRACE INSTRUCTIONS",
		"TILE LEGEND",
		"MOVEMENT:",
		"LEARNING:",
		"EVALUATING:",
	}
	for _, content := range expectedContent {
		if !strings.Contains(text, content) {
			t.Errorf("Expected '%s' in instructions, got: %s", content, text)
		}
	}
}

func TestLayoutFromRows(t *testing.T) {
	layout, width, err := layoutFromRows([]interface{}{"W#W", "S.F", "X~>"})
	if err != nil {
		t.Fatalf("layoutFromRows failed: %v", err)
	}
	if width != 3 || len(layout) != 3 {
		t.Fatalf("Expected a 3x3 layout, got %dx%d", width, len(layout))
	}

	if !layout[0][0].BlocksMovement || !layout[0][1].BlocksMovement {
		t.Error("Expected W and # to both be walls")
	}
	if !layout[1][0].IsStart || !layout[1][2].IsFinish {
		t.Error("Expected start and finish tiles on row 1")
	}
	if !layout[2][0].SkipNextTurn || !layout[2][1].SkipNextTurn {
		t.Error("Expected X and ~ to both be sticky")
	}
	if layout[2][2].SpeedModifier != engine.BoostSpeed {
		t.Errorf("Expected boost speed %d, got %d", engine.BoostSpeed, layout[2][2].SpeedModifier)
	}
}

func TestLayoutFromRows_Errors(t *testing.T) {
	if _, _, err := layoutFromRows([]interface{}{"S.F", "S.FF"}); err == nil {
		t.Error("Expected error for ragged rows")
	}
	if _, _, err := layoutFromRows([]interface{}{"S?F"}); err == nil {
		t.Error("Expected error for unknown tile character")
	}
	if _, _, err := layoutFromRows([]interface{}{3}); err == nil {
		t.Error("Expected error for non-string row")
	}
}

func TestFormatTrack(t *testing.T) {
	track, err := engine.BuildTrack(5, 3, corridorLayout())
	if err != nil {
		t.Fatalf("build track: %v", err)
	}

	got := formatTrack(track)
	want := "#####\nS...F\n#####\n"
	if got != want {
		t.Errorf("formatTrack mismatch:\ngot:\n%swant:\n%s", got, want)
	}
}

func TestFormatRace_PlayByPlay(t *testing.T) {
	rec := &store.RaceRecord{
		ID:      "race_1",
		TrackID: "trk_1",
		Rankings: []engine.Ranking{
			{CarID: "ada", Rank: 1, StepsTaken: 2, Finished: true},
		},
		Ticks:      2,
		Seed:       7,
		PlayByPlay: []string{"tick 1: ada moves right", "tick 2: ada finishes"},
	}

	summary := formatRace(rec, false)
	if strings.Contains(summary, "Play-by-play") {
		t.Error("Expected summary to omit the play-by-play")
	}

	full := formatRace(rec, true)
	for _, line := range rec.PlayByPlay {
		if !strings.Contains(full, line) {
			t.Errorf("Expected play-by-play line %q, got: %s", line, full)
		}
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("Expected text content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

func corridorLayout() [][]engine.TileProperties {
	wall := func(n int) []engine.TileProperties {
		row := make([]engine.TileProperties, n)
		for i := range row {
			row[i] = engine.WallTile()
		}
		return row
	}
	return [][]engine.TileProperties{
		wall(5),
		{engine.StartTile(), engine.NormalTile(), engine.NormalTile(), engine.NormalTile(), engine.FinishTile()},
		wall(5),
	}
}
