// Package history persists completed shares in a small SQLite database so
// the last share link survives restarts.
package history
