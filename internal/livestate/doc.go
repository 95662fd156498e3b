// Package livestate reads what the game client currently has open.
//
// A Source is the one-method capability that produces a Snapshot; the
// production Source subscribes to a gosumemory/tosu compatible websocket
// feed. Reader serializes access to the source and turns every failure,
// including panics, into "no data this tick".
package livestate
