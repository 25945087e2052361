// Package tripdata loads recorded trips from CSV and turns them into the
// resources of a simulation run.
//
// A trip file has a header row with at least these columns:
//
//	pickup_datetime, dropoff_datetime,
//	pickup_latitude, pickup_longitude, dropoff_latitude, dropoff_longitude
//
// Timestamps are "2006-01-02 15:04:05" in the configured time zone, RFC 3339,
// or Unix seconds.
package tripdata

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"

	"github.com/fleet-sim/fleet-sim/sim"
	"github.com/fleet-sim/fleet-sim/sim/roadnet"
	"github.com/fleet-sim/fleet-sim/sim/traffic"
)

const localLayout = "2006-01-02 15:04:05"

// csvTime is a timestamp column. Zone-less values are read as UTC and moved
// into the configured zone after parsing.
type csvTime struct {
	time.Time
	zoned bool
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (t *csvTime) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time, t.zoned = time.Unix(secs, 0).UTC(), true
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		t.Time, t.zoned = parsed, true
		return nil
	}
	parsed, err := time.Parse(localLayout, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q", s)
	}
	t.Time, t.zoned = parsed, false
	return nil
}

func (t csvTime) in(loc *time.Location) time.Time {
	if t.zoned {
		return t.Time
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// Record is one row of a trip file.
type Record struct {
	PickupTime  csvTime `csv:"pickup_datetime"`
	DropoffTime csvTime `csv:"dropoff_datetime"`
	PickupLat   float64 `csv:"pickup_latitude"`
	PickupLon   float64 `csv:"pickup_longitude"`
	DropoffLat  float64 `csv:"dropoff_latitude"`
	DropoffLon  float64 `csv:"dropoff_longitude"`
}

// Options controls how records become resources.
type Options struct {
	Location *time.Location // zone of zone-less timestamps; nil = UTC
	Limit    int            // keep at most this many resources; 0 = all
}

// Trips is the outcome of loading a trip file.
type Trips struct {
	Resources []sim.ResourceSpec   // ordered by availability time
	Samples   []traffic.TripSample // observed vs static trip durations, for traffic estimation
	Read      int                  // rows in the file
	Dropped   int                  // rows that could not be turned into a resource
}

// Load reads the trip file at path and matches every trip onto cityMap.
func Load(path string, cityMap *roadnet.CityMap, opts Options) (*Trips, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trip file: %w", err)
	}
	defer func() { _ = f.Close() }()

	trips, err := Parse(f, cityMap, opts)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return trips, nil
}

// Parse reads trip records from r. A trip is dropped when its drop-off is
// before its pickup or when the matched drop-off cannot be reached from the
// matched pickup.
func Parse(r io.Reader, cityMap *roadnet.CityMap, opts Options) (*Trips, error) {
	if cityMap == nil || cityMap.PathTable() == nil {
		return nil, fmt.Errorf("trip matching needs a map with a shortest-path table")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	var records []Record
	if err := gocsv.UnmarshalCSV(reader, &records); err != nil {
		return nil, fmt.Errorf("parsing trip records: %w", err)
	}

	out := &Trips{Read: len(records)}
	for i, rec := range records {
		spec, sample, err := toResource(rec, cityMap, loc)
		if err != nil {
			logrus.Debugf("Dropping trip on row %d: %v", i+2, err)
			out.Dropped++
			continue
		}
		out.Resources = append(out.Resources, spec)
		out.Samples = append(out.Samples, sample)
	}
	slices.SortStableFunc(out.Resources, func(a, b sim.ResourceSpec) int {
		return cmp.Compare(a.AvailableTime, b.AvailableTime)
	})
	if opts.Limit > 0 && len(out.Resources) > opts.Limit {
		out.Dropped += len(out.Resources) - opts.Limit
		out.Resources = out.Resources[:opts.Limit]
	}

	logrus.Infof("Loaded %d trips (%d read, %d dropped)", len(out.Resources), out.Read, out.Dropped)
	return out, nil
}

func toResource(rec Record, cityMap *roadnet.CityMap, loc *time.Location) (sim.ResourceSpec, traffic.TripSample, error) {
	pickupAt, dropoffAt := rec.PickupTime.in(loc).Unix(), rec.DropoffTime.in(loc).Unix()
	if dropoffAt < pickupAt {
		return sim.ResourceSpec{}, traffic.TripSample{}, fmt.Errorf("drop-off %d before pickup %d", dropoffAt, pickupAt)
	}
	pickup, err := cityMap.MapMatch(rec.PickupLat, rec.PickupLon)
	if err != nil {
		return sim.ResourceSpec{}, traffic.TripSample{}, fmt.Errorf("matching pickup: %w", err)
	}
	dropoff, err := cityMap.MapMatch(rec.DropoffLat, rec.DropoffLon)
	if err != nil {
		return sim.ResourceSpec{}, traffic.TripSample{}, fmt.Errorf("matching drop-off: %w", err)
	}
	if !cityMap.Reachable(pickup, dropoff) {
		return sim.ResourceSpec{}, traffic.TripSample{}, fmt.Errorf("drop-off %v unreachable from pickup %v", dropoff, pickup)
	}

	tripTime := cityMap.TravelTimeBetween(pickup, dropoff)
	spec := sim.ResourceSpec{
		AvailableTime: pickupAt,
		PickupLat:     rec.PickupLat,
		PickupLon:     rec.PickupLon,
		DropoffLat:    rec.DropoffLat,
		DropoffLon:    rec.DropoffLon,
		Pickup:        pickup,
		Dropoff:       dropoff,
		TripTime:      tripTime,
	}
	sample := traffic.TripSample{
		Start:      pickupAt,
		StaticTime: float64(tripTime),
		ActualTime: float64(dropoffAt - pickupAt),
	}
	return spec, sample, nil
}
