package cmd

import (
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/fleet-sim/fleet-sim/sim/traffic"
)

func TestToPatternFile_YAML(t *testing.T) {
	// GIVEN a two-epoch pattern
	p := traffic.NewPattern(300)
	require.NoError(t, p.AddSample(0, 1.0))
	require.NoError(t, p.AddSample(300, 0.5))

	// WHEN written as YAML
	data, err := yaml.Marshal(toPatternFile(p))
	require.NoError(t, err)

	// THEN the document lists the step and each epoch
	out := string(data)
	assert.Contains(t, out, "step: 300")
	assert.Contains(t, out, "epoch_start: 300")
	assert.Contains(t, out, "speed_factor: 0.5")
}

func TestToMatchedTrips_ExampleGrid(t *testing.T) {
	// GIVEN the example trips matched onto the grid
	useExampleGrid(t)
	cityMap, trips, err := loadMatchedTrips(mapPath, tripsPath)
	require.NoError(t, err)

	// WHEN converted to CSV rows
	rows := toMatchedTrips(cityMap, trips)
	require.Len(t, rows, len(trips.Resources))

	// THEN every row names grid vertices and the rows survive a CSV round trip
	for _, r := range rows {
		assert.GreaterOrEqual(t, r.PickupFrom, int64(1))
		assert.LessOrEqual(t, r.PickupFrom, int64(16))
		assert.NotEqual(t, r.PickupFrom, r.PickupTo)
		assert.GreaterOrEqual(t, r.PickupOffset, 0.0)
		assert.GreaterOrEqual(t, r.TripTime, int64(0))
	}
	out, err := gocsv.MarshalString(rows)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "available_time,pickup_from,pickup_to,pickup_offset"))

	var back []*matchedTrip
	require.NoError(t, gocsv.UnmarshalString(out, &back))
	assert.Equal(t, rows[0].AvailableTime, back[0].AvailableTime)
	assert.Len(t, back, len(rows))
}
