// Package mcp provides a Model Context Protocol interface to the race API.
//
// The package is a thin proxy: every tool call is translated into a REST
// request against the HTTP server, so MCP clients and plain HTTP clients
// always see the same state.
//
// MCP Tools:
//
//   - create_track: Create a track from a config file or an inline layout
//   - list_tracks: List stored tracks
//   - get_track: Render one track as an ASCII grid
//   - list_track_configs: List on-disk track configs
//   - simulate_race: Run one race, with or without learning
//   - get_race: Full record of a past race with play-by-play
//   - recent_races: Most recent races, newest first
//   - get_qtable: A car's learned Q-table
//   - reset_qtable: Wipe a car's Q-table
//   - car_stats: Per-track statistics for a car
//   - car_traits: Deterministic cosmetic traits for a car
//   - race_instructions: Tile legend and reward scheme
//
// Transport Modes:
//
// The underlying MCP server supports stdio for local clients and an HTTP
// message endpoint for remote integration.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	srv := client.GetMCPServer()
//	// serve srv over stdio or mount its HandleMessage on /mcp
package mcp
