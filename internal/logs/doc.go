// Package logs provides file tailing helpers for `oszshare logs`.
//
// It reads the daemon log with bounded memory usage, supports negative
// offsets for "tail last N lines" operations, and powers follow mode by
// polling from a saved offset. Callers supply contexts so polling stops when
// the CLI exits.
package logs
