// Package fleet provides reference dispatch strategies implementing
// sim.FleetManager.
package fleet

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/samber/lo"

	"github.com/fleet-sim/fleet-sim/sim"
	"github.com/fleet-sim/fleet-sim/sim/roadnet"
)

// Strategy names accepted by NewFleetManager.
const (
	StrategyRandomDestination = "random-destination"
	StrategyRandomWalk        = "random-walk"
)

var validStrategies = map[string]bool{
	StrategyRandomDestination: true,
	StrategyRandomWalk:        true,
	"":                        true, // empty defaults to random-destination
}

// IsValidStrategy returns true if name is a recognized strategy.
func IsValidStrategy(name string) bool {
	return validStrategies[name]
}

// ValidStrategyNames returns the recognized strategy names in sorted order.
func ValidStrategyNames() []string {
	names := lo.Filter(lo.Keys(validStrategies), func(n string, _ int) bool { return n != "" })
	slices.Sort(names)
	return names
}

// NewFleetManager creates a strategy by name. The strategy works on its own
// copy of cityMap and draws every random choice from rng.
func NewFleetManager(name string, cityMap *roadnet.CityMap, rng *rand.Rand) (sim.FleetManager, error) {
	if cityMap == nil || cityMap.PathTable() == nil {
		return nil, fmt.Errorf("fleet manager needs a map with a shortest-path table")
	}
	if rng == nil {
		return nil, fmt.Errorf("fleet manager needs a random source")
	}
	switch name {
	case "", StrategyRandomDestination:
		return NewRandomDestination(cityMap, rng), nil
	case StrategyRandomWalk:
		return NewRandomWalk(cityMap, rng), nil
	default:
		return nil, fmt.Errorf("unknown fleet manager %q; valid: %v", name, ValidStrategyNames())
	}
}
