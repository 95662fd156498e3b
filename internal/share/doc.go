// Package share runs the upload flow for the beatmap currently open in the
// game: choose the set, package it, upload with retries, and record the
// resulting link.
//
// Only one share runs at a time across every process using the same state
// directory. A second request while one is in flight fails immediately with
// ErrUploadInProgress instead of queueing.
package share
