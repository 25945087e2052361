package cmd

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fleet-sim/fleet-sim/sim/roadnet"
	"github.com/fleet-sim/fleet-sim/sim/traffic"
	"github.com/fleet-sim/fleet-sim/sim/tripdata"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Derive simulator inputs from raw trip data",
	Long:  "Match raw trip records onto a road network and write the derived traffic pattern or the matched trips to stdout for piping.",
}

// --- fleet-sim convert traffic-pattern ---

// patternFile is the YAML form of a traffic pattern.
type patternFile struct {
	Step    int64           `yaml:"step"`
	Samples []patternSample `yaml:"samples"`
}

type patternSample struct {
	EpochStart  int64   `yaml:"epoch_start"`
	SpeedFactor float64 `yaml:"speed_factor"`
}

var convertPatternCmd = &cobra.Command{
	Use:   "traffic-pattern",
	Short: "Estimate the time-of-day traffic pattern of a trip file",
	Run: func(cmd *cobra.Command, args []string) {
		_, trips, err := loadMatchedTrips(mapPath, tripsPath)
		if err != nil {
			logrus.Fatalf("Loading trips failed: %v", err)
		}
		pattern, err := traffic.Estimate(trips.Samples, trafficStep, trafficWindow)
		if err != nil {
			logrus.Fatalf("Traffic estimation failed: %v", err)
		}
		writeYAMLToStdout(toPatternFile(pattern))
	},
}

func toPatternFile(p *traffic.Pattern) patternFile {
	out := patternFile{Step: p.Step()}
	for _, s := range p.Samples() {
		out.Samples = append(out.Samples, patternSample{EpochStart: s.EpochStart, SpeedFactor: s.SpeedFactor})
	}
	return out
}

// --- fleet-sim convert trips ---

// matchedTrip is one CSV row of map-matched trips.
type matchedTrip struct {
	AvailableTime  int64   `csv:"available_time"`
	PickupFrom     int64   `csv:"pickup_from"`
	PickupTo       int64   `csv:"pickup_to"`
	PickupOffset   float64 `csv:"pickup_offset"`
	DropoffFrom    int64   `csv:"dropoff_from"`
	DropoffTo      int64   `csv:"dropoff_to"`
	DropoffOffset  float64 `csv:"dropoff_offset"`
	TripTime       int64   `csv:"trip_time"`
	StaticTripTime int64   `csv:"static_trip_time"`
}

var convertTripsCmd = &cobra.Command{
	Use:   "trips",
	Short: "Write trips matched onto the road network as CSV",
	Run: func(cmd *cobra.Command, args []string) {
		cityMap, trips, err := loadMatchedTrips(mapPath, tripsPath)
		if err != nil {
			logrus.Fatalf("Loading trips failed: %v", err)
		}
		out, err := gocsv.MarshalString(toMatchedTrips(cityMap, trips))
		if err != nil {
			logrus.Fatalf("Failed to marshal trips: %v", err)
		}
		fmt.Print(out)
	},
}

func toMatchedTrips(m *roadnet.CityMap, trips *tripdata.Trips) []*matchedTrip {
	rows := make([]*matchedTrip, 0, len(trips.Resources))
	for _, r := range trips.Resources {
		pickup, dropoff := m.Road(r.Pickup.Road), m.Road(r.Dropoff.Road)
		rows = append(rows, &matchedTrip{
			AvailableTime:  r.AvailableTime,
			PickupFrom:     m.Intersection(pickup.From).ID,
			PickupTo:       m.Intersection(pickup.To).ID,
			PickupOffset:   r.Pickup.Offset,
			DropoffFrom:    m.Intersection(dropoff.From).ID,
			DropoffTo:      m.Intersection(dropoff.To).ID,
			DropoffOffset:  r.Dropoff.Offset,
			TripTime:       r.TripTime,
			StaticTripTime: m.TravelTimeBetween(r.Pickup, r.Dropoff),
		})
	}
	return rows
}

// writeYAMLToStdout marshals v to YAML and prints it.
func writeYAMLToStdout(v any) {
	data, err := yaml.Marshal(v)
	if err != nil {
		logrus.Fatalf("Failed to marshal YAML: %v", err)
	}
	if _, err := os.Stdout.Write(data); err != nil {
		logrus.Fatalf("Failed to write output: %v", err)
	}
}

func init() {
	for _, c := range []*cobra.Command{convertPatternCmd, convertTripsCmd} {
		registerInputFlags(c)
	}
	convertPatternCmd.Flags().Int64Var(&trafficStep, "traffic-step", 900, "Traffic pattern epoch length in seconds")
	convertPatternCmd.Flags().Int64Var(&trafficWindow, "traffic-window", 900, "Traffic estimation window in seconds")

	convertCmd.AddCommand(convertPatternCmd, convertTripsCmd)
	rootCmd.AddCommand(convertCmd)
}
