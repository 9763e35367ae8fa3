package walker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/playperu/citywalk/internal/citywalk"
	"github.com/playperu/citywalk/internal/geo"
	"github.com/playperu/citywalk/internal/walker"
)

func TestEvaluate(t *testing.T) {
	stops := twoStops()
	overlap := geo.Offset(plazaMayor, 0, 30)

	visitedFirst := twoStops()
	visitedFirst[0].Visited = true

	noRadius := twoStops()
	noRadius[0].RadiusMeters = 0

	tests := []struct {
		name   string
		pos    geo.Point
		stops  []citywalk.Stop
		skip   func(string) bool
		want   string
		wantOK bool
	}{
		{"overlap picks first in path order", overlap, stops, nil, "s1", true},
		{"inside second only", geo.Offset(plazaMayor, 0, 90), stops, nil, "s2", true},
		{"outside all", geo.Offset(plazaMayor, 500, 0), stops, nil, "", false},
		{"visited stop skipped", overlap, visitedFirst, nil, "s2", true},
		{"suppressed stop skipped", overlap, stops, func(id string) bool { return id == "s1" }, "s2", true},
		{"everything skipped", overlap, stops, func(string) bool { return true }, "", false},
		{"default radius applies", geo.Offset(plazaMayor, 45, 0), noRadius, nil, "s1", true},
		{"no stops", plazaMayor, nil, nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := walker.Evaluate(tt.pos, tt.stops, tt.skip)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got.PointID)
		})
	}
}
