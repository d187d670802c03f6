// Package websocket streams completed races to subscribed clients.
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection is handled by a dedicated
// goroutine pair that manages reading, writing, and cleanup.
//
// Subscriptions:
//
// Clients connect with an optional track filter (?track_id=abc). Clients
// without a filter receive every race. Subscriptions are push-only;
// payloads sent by clients are discarded.
//
// Message Protocol:
//
// Messages are JSON envelopes:
//
//	{"event": "race_completed", "race": { ...full race record... }}
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//
//	// the hub is the service's race notifier
//	svc := service.NewRaceService(st, tracks, cfg, hub)
//
// Concurrency:
//
// Registration, unregistration and broadcasting all flow through the hub
// goroutine's channels, so no map is touched from more than one goroutine.
// A slow client whose buffer fills is dropped rather than blocking the
// broadcast.
package websocket
