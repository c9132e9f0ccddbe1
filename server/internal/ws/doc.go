// Package ws implements the WebSocket hub for qexp-server.
//
// Hub broadcasts the current fit snapshot to every connected client on a
// fixed interval and pushes alert events the moment they fire or resolve.
//
// Messages sent to clients:
//
//	{"event": "snapshot", "data": { /* same schema as GET /api/v1/snapshot */ }}
//	{"event": "alert",    "data": { /* one alert, as in GET /api/v1/alerts */ }}
//
// The upgrader accepts all origins. The hub is mounted at /ws/stream.
package ws
