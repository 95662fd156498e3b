// Package services defines shared utilities consumed by the detection, packaging
// and upload components.
//
// Key responsibilities:
//   - Context helpers that stamp triggers and correlation identifiers for
//     logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is and show a consistent hint.
package services
