// Package ws implements the realtime broadcast hub.
//
// Hub manages a set of connected WebSocket subscribers and multiplexes
// measurement and alert events to them. Delivery is fan-out with a bounded
// per-client outbound queue: a client that cannot keep up is disconnected
// rather than allowed to stall delivery to the others. For a single client,
// events arrive in publish order; no ordering is promised across clients.
//
// A client may scope itself to one farm by sending
//
//	{"type": "subscribe", "farm_id": "<id>"}
//
// after which it only receives events for that farm. Unscoped clients
// receive everything. The hub answers {"type":"ping"} with {"type":"pong"}.
//
// On connect the hub immediately sends the last known measurement snapshot
// for each farm in the client's scope, so a late joiner starts from a
// consistent view instead of an empty one.
//
// The upgrader accepts all origins; apply CORS restrictions at the reverse
// proxy level. The hub is mounted at /ws/stream by the server.
package ws
