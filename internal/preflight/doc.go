// Package preflight runs readiness checks for the directories, share server
// and live-state feed that oszshare depends on.
//
// Each check returns a Result instead of an error so the CLI can render the
// full list even when several dependencies are missing.
package preflight
