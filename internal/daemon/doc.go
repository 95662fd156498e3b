// Package daemon hosts the long-running oszshare process.
//
// The daemon holds a single-instance file lock, resolves the share server
// once at startup, polls the game on a fixed interval so the current beatmap
// is always known, and exposes a small local HTTP API for status, the
// current beatmap, share history, on-demand endpoint resolution and share
// triggers. Long-running pieces run under one errgroup so Stop waits for
// all of them.
package daemon
