package walker

import (
	"github.com/playperu/citywalk/internal/citywalk"
	"github.com/playperu/citywalk/internal/geo"
)

// Evaluate returns the first stop, in path order, whose geofence contains pos.
// Visited stops and stops for which skip reports true are ignored. stops must
// already be in path order, as snapshots are.
//
// First match rather than nearest keeps the outcome stable while the user
// moves through overlapping geofences.
func Evaluate(pos geo.Point, stops []citywalk.Stop, skip func(pointID string) bool) (citywalk.Stop, bool) {
	for _, s := range stops {
		if s.Visited || (skip != nil && skip(s.PointID)) {
			continue
		}
		if geo.Within(pos, geo.Point{Lat: s.Lat, Lng: s.Lng}, s.Radius()) {
			return s, true
		}
	}
	return citywalk.Stop{}, false
}
