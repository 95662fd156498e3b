// Package main hosts the oszshare CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon in the foreground, queries a running
// daemon over its local API, and falls back to the in-process client engine
// for one-shot detection, endpoint resolution and shares when no daemon is
// listening. Share history is read straight from the SQLite store.
package main
