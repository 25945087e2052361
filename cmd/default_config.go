package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario describes a preset run configuration in defaults.yaml. Zero
// values leave the flag default in place.
type Scenario struct {
	Map            string `yaml:"map"`
	Trips          string `yaml:"trips"`
	TimeZone       string `yaml:"time_zone"`
	MaxTrips       int    `yaml:"max_trips"`
	Agents         int    `yaml:"agents"`
	MaxLifetime    int64  `yaml:"max_lifetime"`
	EndTime        int64  `yaml:"end_time"`
	FleetManager   string `yaml:"fleet_manager"`
	DynamicTraffic bool   `yaml:"dynamic_traffic"`
	TrafficStep    int64  `yaml:"traffic_step"`
	TrafficWindow  int64  `yaml:"traffic_window"`
}

// Config represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing (R10).
type Config struct {
	Version   string              `yaml:"version"`
	Scenarios map[string]Scenario `yaml:"scenarios"`
}

// loadDefaultsConfig parses defaults.yaml into a Config struct.
// Uses strict field checking (R10).
func loadDefaultsConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read defaults file: %w", err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse defaults YAML: %w", err)
	}
	return cfg, nil
}

// applyScenario copies the scenario's non-zero values into the flag
// variables whose flags were not set on the command line.
func applyScenario(sc Scenario, changed func(name string) bool) {
	setString := func(flag string, dst *string, v string) {
		if v != "" && !changed(flag) {
			*dst = v
		}
	}
	setInt := func(flag string, dst *int, v int) {
		if v != 0 && !changed(flag) {
			*dst = v
		}
	}
	setInt64 := func(flag string, dst *int64, v int64) {
		if v != 0 && !changed(flag) {
			*dst = v
		}
	}

	setString("map", &mapPath, sc.Map)
	setString("trips", &tripsPath, sc.Trips)
	setString("time-zone", &timeZone, sc.TimeZone)
	setInt("max-trips", &maxTrips, sc.MaxTrips)
	setInt("agents", &numAgents, sc.Agents)
	setInt64("max-lifetime", &maxLifetime, sc.MaxLifetime)
	setInt64("end-time", &endTime, sc.EndTime)
	setString("fleet-manager", &fleetManager, sc.FleetManager)
	if sc.DynamicTraffic && !changed("dynamic-traffic") {
		dynamicTraffic = true
	}
	setInt64("traffic-step", &trafficStep, sc.TrafficStep)
	setInt64("traffic-window", &trafficWindow, sc.TrafficWindow)
}
