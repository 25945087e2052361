package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fleet-sim/fleet-sim/sim"
	"github.com/fleet-sim/fleet-sim/sim/fleet"
	"github.com/fleet-sim/fleet-sim/sim/mapdata"
	"github.com/fleet-sim/fleet-sim/sim/roadnet"
	"github.com/fleet-sim/fleet-sim/sim/trace"
	"github.com/fleet-sim/fleet-sim/sim/traffic"
	"github.com/fleet-sim/fleet-sim/sim/tripdata"
)

var (
	// CLI flags for inputs
	mapPath   string // YAML road network file
	tripsPath string // CSV trip records
	timeZone  string // zone of zone-less trip timestamps
	maxTrips  int    // keep at most this many trips (0 = all)

	// CLI flags for the run
	seed             int64  // Seed for agent deployment and strategy choices
	numAgents        int    // Number of agents deployed at the first availability time
	maxLifetime      int64  // Seconds a request waits before it expires
	endTime          int64  // Nominal end of the run (0 = last availability time)
	fleetManager     string // Dispatch strategy name
	pathTableWorkers int    // Goroutines for the shortest-path table
	logLevel         string // Log verbosity level
	traceLevel       string // Decision trace verbosity
	resultsPath      string // JSON summary output (empty = none)

	// CLI flags for dynamic traffic
	dynamicTraffic bool  // Integrate a traffic pattern estimated from the trips
	trafficStep    int64 // Pattern epoch length in seconds
	trafficWindow  int64 // Estimation window in seconds

	// CLI flags for scenario defaults
	defaultsPath string // Path to defaults.yaml
	scenarioName string // Scenario in defaults.yaml supplying flag defaults
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "fleet-sim",
	Short: "Discrete-event simulator for vehicle fleets serving ride requests",
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the fleet simulation",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if scenarioName != "" {
			cfg, err := loadDefaultsConfig(defaultsPath)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			sc, ok := cfg.Scenarios[scenarioName]
			if !ok {
				logrus.Fatalf("Unknown scenario %q. Check %s for available scenarios.", scenarioName, defaultsPath)
			}
			// Flags the user set explicitly win over the scenario
			applyScenario(sc, cmd.Flags().Changed)
		}

		wallStart := time.Now()
		s, err := runSimulation()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		s.Metrics().Print()
		if s.Trace().Enabled() {
			printTraceSummary(trace.Summarize(s.Trace()))
		}
		if resultsPath != "" {
			if err := s.Metrics().SaveResults(resultsPath); err != nil {
				logrus.Fatalf("Saving results: %v", err)
			}
		}
		logrus.Infof("Simulation complete in %v.", time.Since(wallStart).Round(time.Millisecond))
	},
}

// runSimulation loads the inputs named by the flags and runs one simulation.
func runSimulation() (*sim.Simulator, error) {
	if mapPath == "" || tripsPath == "" {
		return nil, fmt.Errorf("both --map and --trips are required")
	}
	if !fleet.IsValidStrategy(fleetManager) {
		return nil, fmt.Errorf("unknown fleet manager %q; valid: %v", fleetManager, fleet.ValidStrategyNames())
	}
	if !trace.IsValidTraceLevel(traceLevel) {
		return nil, fmt.Errorf("unknown trace level %q; valid: none, decisions", traceLevel)
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone: %w", err)
	}

	cityMap, err := mapdata.Load(mapPath, pathTableWorkers)
	if err != nil {
		return nil, err
	}
	trips, err := tripdata.Load(tripsPath, cityMap, tripdata.Options{Location: loc, Limit: maxTrips})
	if err != nil {
		return nil, err
	}
	if len(trips.Resources) == 0 {
		return nil, fmt.Errorf("no usable trips in %s", tripsPath)
	}

	cfg := sim.SimConfig{
		Seed:             seed,
		NumAgents:        numAgents,
		MaxLifetime:      maxLifetime,
		EndTime:          endTime,
		Traffic:          sim.TrafficConfig{Dynamic: dynamicTraffic, Step: trafficStep, Window: trafficWindow},
		PathTableWorkers: pathTableWorkers,
		Trace:            trace.TraceConfig{Level: trace.TraceLevel(traceLevel)},
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}

	var pattern *traffic.Pattern
	if cfg.Traffic.Dynamic {
		pattern, err = traffic.Estimate(trips.Samples, cfg.Traffic.Step, cfg.Traffic.Window)
		if err != nil {
			return nil, fmt.Errorf("estimating traffic pattern: %w", err)
		}
	}

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed))
	fm, err := fleet.NewFleetManager(fleetManager, cityMap, rng.ForSubsystem(sim.SubsystemFleet))
	if err != nil {
		return nil, err
	}

	logrus.Infof("Starting simulation: %d agents, %d trips, max lifetime %ds, fleet manager %q",
		cfg.NumAgents, len(trips.Resources), cfg.MaxLifetime, fleetManager)
	s, err := sim.NewSimulator(cfg, cityMap, pattern, fm, trips.Resources)
	if err != nil {
		return nil, err
	}
	s.Run()
	return s, nil
}

// loadMatchedTrips loads the map and the trips for the convert commands.
func loadMatchedTrips(networkPath, tripFile string) (*roadnet.CityMap, *tripdata.Trips, error) {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, nil, fmt.Errorf("loading time zone: %w", err)
	}
	cityMap, err := mapdata.Load(networkPath, pathTableWorkers)
	if err != nil {
		return nil, nil, err
	}
	trips, err := tripdata.Load(tripFile, cityMap, tripdata.Options{Location: loc, Limit: maxTrips})
	if err != nil {
		return nil, nil, err
	}
	return cityMap, trips, nil
}

func printTraceSummary(ts *trace.TraceSummary) {
	fmt.Println("=== Decision Trace ===")
	fmt.Printf("Decisions            : %d\n", ts.TotalDecisions)
	fmt.Printf("Assignments          : %d applied, %d rejected\n", ts.AppliedAssignments, ts.RejectedAssignments)
	fmt.Printf("Aborts               : %d applied, %d rejected\n", ts.Aborts, ts.RejectedAborts)
	fmt.Printf("Expirations          : %d\n", ts.Expirations)
	if ts.Pickups > 0 {
		fmt.Printf("Approach Time        : mean %.1f s, max %d s\n", ts.MeanApproachTime, ts.MaxApproachTime)
	}
	reasons := lo.Keys(ts.RejectReasons)
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Printf("  rejected (%s): %d\n", reason, ts.RejectReasons[reason])
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerInputFlags adds the map and trip flags shared by run and convert.
func registerInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&mapPath, "map", "", "Path to the YAML road network file")
	cmd.Flags().StringVar(&tripsPath, "trips", "", "Path to the CSV trip records")
	cmd.Flags().StringVar(&timeZone, "time-zone", "UTC", "Time zone of trip timestamps without an offset")
	cmd.Flags().IntVar(&maxTrips, "max-trips", 0, "Keep at most this many trips (0 = all)")
	cmd.Flags().IntVar(&pathTableWorkers, "workers", 4, "Goroutines used to build the shortest-path table")
}

// init sets up CLI flags and subcommands
func init() {
	registerInputFlags(runCmd)

	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for agent deployment and strategy choices")
	runCmd.Flags().IntVar(&numAgents, "agents", 100, "Number of agents")
	runCmd.Flags().Int64Var(&maxLifetime, "max-lifetime", 600, "Seconds a request waits before it expires")
	runCmd.Flags().Int64Var(&endTime, "end-time", 0, "Nominal end of the run in Unix seconds (0 = last availability time)")
	runCmd.Flags().StringVar(&fleetManager, "fleet-manager", fleet.StrategyRandomDestination, "Dispatch strategy (random-destination, random-walk)")
	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Decision trace level (none, decisions)")
	runCmd.Flags().StringVar(&resultsPath, "results-path", "", "Write the run summary as JSON to this file")

	// Dynamic traffic
	runCmd.Flags().BoolVar(&dynamicTraffic, "dynamic-traffic", false, "Scale road speeds by a pattern estimated from the trips")
	runCmd.Flags().Int64Var(&trafficStep, "traffic-step", 900, "Traffic pattern epoch length in seconds")
	runCmd.Flags().Int64Var(&trafficWindow, "traffic-window", 900, "Traffic estimation window in seconds")

	// Scenario defaults
	runCmd.Flags().StringVar(&defaultsPath, "defaults-filepath", "defaults.yaml", "Path to defaults.yaml")
	runCmd.Flags().StringVar(&scenarioName, "scenario", "", "Scenario in defaults.yaml supplying flag defaults")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
