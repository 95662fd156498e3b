package daemonrun

import (
	"errors"
	"strings"

	"oszshare/internal/beatmap"
	"oszshare/internal/livestate"
)

var errNoFeedRating = errors.New("live state feed has no rating for this difficulty")

// latestFrame is the part of the websocket source the rating hook reads.
type latestFrame interface {
	Latest() (livestate.Snapshot, bool)
}

// feedRating answers star rating requests with the unmodded rating the live
// feed publishes. It only answers for the difficulty the feed is showing;
// the descriptor is matched on its difficulty name.
func feedRating(source latestFrame) beatmap.RatingFunc {
	return func(d *beatmap.Descriptor, mods beatmap.Mods) (float64, error) {
		if mods != beatmap.NoMods || d == nil {
			return 0, errNoFeedRating
		}
		snap, ok := source.Latest()
		if !ok || snap.StarRating <= 0 {
			return 0, errNoFeedRating
		}
		if name := strings.TrimSpace(snap.Difficulty); name != "" && !strings.EqualFold(name, strings.TrimSpace(d.Version)) {
			return 0, errNoFeedRating
		}
		return snap.StarRating, nil
	}
}
