// Package config loads the two configuration surfaces of the server.
//
// Track configurations are JSON files in the tracks directory. Each file
// describes a grid as ASCII art plus a legend:
//
//	{
//	  "name": "figure eight",
//	  "layout": [
//	    "SRRRRR",
//	    "RWWWWR",
//	    "RRRRRF"
//	  ],
//	  "legend": {"S": "start", "R": "road", "W": "wall", "F": "finish"},
//	  "speeds": {"R": 2}
//	}
//
// Files are validated against a JSON schema before decoding, then built
// into a track to prove the layout is legal (size limits, at least one
// start and finish, every start with a route to a finish).
//
// The server configuration is a single YAML file covering the listen
// address, database path, track directory, race retention and training
// defaults. Every field has a default; no file is required.
package config
