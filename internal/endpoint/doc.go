// Package endpoint picks the share server to talk to by probing candidate
// base URLs for a healthy /api/v1/health response.
//
// Candidates are the configured URL followed by the well-known local
// development addresses. Probes run one at a time in candidate order and
// stop at the first healthy server; every probe outcome is returned so
// callers can show why a server was skipped.
package endpoint
