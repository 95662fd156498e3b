// Package beatmap resolves display metadata for a beatmap set from its folder
// name and its .osu descriptor file.
//
// Resolution never fails: each source (folder naming convention, descriptor
// parse, star rating, [Events] background scan) only improves on fallbacks
// computed from the previous one. Relative paths taken from descriptor content
// are validated with ValidateRelative and background images are only reported
// when they resolve inside the set directory.
package beatmap
