// Package process finds the running game client and the Songs directory its
// beatmap sets live in.
//
// Process enumeration goes through gopsutil. On Windows a candidate with a
// visible top-level window is preferred, which skips updater and crash
// handler helpers that share the executable name. The Songs directory is
// cached per process identity (PID plus start time) so PID reuse after a
// restart invalidates it.
package process
