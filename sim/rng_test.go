package sim

import (
	"math/rand"
	"testing"
)

func TestPartitionedRNG_SameSeed_SameDeployment(t *testing.T) {
	// GIVEN two generators with the same key
	a := NewPartitionedRNG(NewSimulationKey(42))
	b := NewPartitionedRNG(NewSimulationKey(42))

	// THEN the deployment and fleet streams match draw for draw
	for i := 0; i < 5; i++ {
		if x, y := a.ForSubsystem(SubsystemDeployment).Int63(), b.ForSubsystem(SubsystemDeployment).Int63(); x != y {
			t.Fatalf("deployment draw %d: %d != %d", i, x, y)
		}
		if x, y := a.ForSubsystem(SubsystemFleet).Float64(), b.ForSubsystem(SubsystemFleet).Float64(); x != y {
			t.Fatalf("fleet draw %d: %v != %v", i, x, y)
		}
	}
}

func TestPartitionedRNG_SubsystemIsolation(t *testing.T) {
	// GIVEN one generator that draws heavily from deployment first
	busy := NewPartitionedRNG(NewSimulationKey(7))
	for i := 0; i < 100; i++ {
		busy.ForSubsystem(SubsystemDeployment).Float64()
	}
	fresh := NewPartitionedRNG(NewSimulationKey(7))

	// THEN the fleet stream is unaffected
	if got, want := busy.ForSubsystem(SubsystemFleet).Float64(), fresh.ForSubsystem(SubsystemFleet).Float64(); got != want {
		t.Errorf("fleet stream perturbed by deployment draws: %v != %v", got, want)
	}
}

func TestPartitionedRNG_DeploymentUsesMasterSeed(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(99))
	want := rand.New(rand.NewSource(99)).Int63()
	if got := rng.ForSubsystem(SubsystemDeployment).Int63(); got != want {
		t.Errorf("deployment first draw = %d, want %d", got, want)
	}
}

func TestPartitionedRNG_CachesInstance(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(1))
	if rng.ForSubsystem(SubsystemFleet) != rng.ForSubsystem(SubsystemFleet) {
		t.Error("ForSubsystem returned different instances for same name")
	}
	if len(rng.subsystems) != 1 {
		t.Errorf("have %d subsystems, want 1", len(rng.subsystems))
	}
	if rng.Key() != 1 {
		t.Errorf("Key() = %d, want 1", rng.Key())
	}
}

func TestFnv1a64_DistinctSubsystems(t *testing.T) {
	if fnv1a64(SubsystemDeployment) == fnv1a64(SubsystemFleet) {
		t.Error("subsystem hashes collide")
	}
	if fnv1a64("fleet") != fnv1a64("fleet") {
		t.Error("hash is not deterministic")
	}
}
