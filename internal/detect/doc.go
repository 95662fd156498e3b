// Package detect answers "which beatmap difficulty is open right now".
//
// A Detector finds the game process, reads its live state, joins the
// reported folder and file onto the Songs directory (refreshing the Songs
// lookup once when the files are missing) and resolves metadata. Transient
// misses are retried a few times with a short wait; overlapping calls are
// rejected with ErrDetectionInProgress instead of queueing.
package detect
