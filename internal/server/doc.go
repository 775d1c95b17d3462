// Package server implements the WebSocket relay behind auction chat rooms.
//
// Clients join an auction room to receive its recent history and send chat
// messages that are stored per room and fanned out to open connections. The
// implementation is organized into specialized files for configuration, the
// connection registry, clients, the relay, routing, and HTTP handlers.
package server
