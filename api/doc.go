// Package api provides the HTTP REST surface of the race server.
//
// Endpoints:
//
// Tracks:
//   - POST /api/tracks - Create a track (inline layout or config_id)
//   - GET /api/tracks - List stored tracks
//   - GET /api/tracks/{id} - Get one track
//   - GET /api/track-configs - List on-disk track configurations
//
// Races:
//   - POST /api/races - Simulate a race and persist the result
//   - GET /api/races?limit=N - List recent races, newest first
//   - GET /api/races/{id} - Get one race
//
// Cars:
//   - GET /api/cars/{id}/qtable - Inspect a car's learned Q-table
//   - DELETE /api/cars/{id}/qtable - Reset a car's learning
//   - GET /api/cars/{id}/stats - Lifetime per-track solo/pvp statistics
//   - GET /api/cars/{id}/traits - Deterministic cosmetic traits
//
// Other:
//   - GET /api/health - Liveness probe
//   - GET /ws?track_id=... - WebSocket race feed (empty filter = all races)
//
// Request/Response Format:
//
// All endpoints accept and return JSON. Errors are returned as JSON with
// appropriate HTTP status codes:
//
//	{
//	  "error": "error message"
//	}
//
// Validation failures (bad layouts, too many cars, duplicate car ids) map
// to 400; unknown tracks, races and configs map to 404.
package api
