package sim

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveResults_WritesSummaryJSON(t *testing.T) {
	// GIVEN metrics with one served and one expired resource
	m := NewMetrics()
	m.TotalAgents = 1
	m.TotalResources = 2
	m.SimEndTime = 900
	m.recordAssignment(AssignmentRecord{AgentID: 2, ResourceID: 0, ApproachTime: 30, WaitTime: 45})
	m.recordTrip(TripRecord{AgentID: 2, ResourceID: 0, TripTime: 300})
	m.recordExpiration(ExpirationRecord{ResourceID: 1, WaitTime: 600, DetachedAgent: NoAgent})

	outputPath := filepath.Join(t.TempDir(), "results.json")

	// WHEN SaveResults is called
	if err := m.SaveResults(outputPath); err != nil {
		t.Fatalf("SaveResults: %v", err)
	}

	// THEN the file holds the summary as JSON
	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("failed to read output file: %v", err)
	}
	var got Summary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("failed to parse output JSON: %v", err)
	}
	if got.PickedUp != 1 || got.DroppedOff != 1 || got.Expired != 1 {
		t.Errorf("counts: got picked_up=%d dropped_off=%d expired=%d, want 1/1/1", got.PickedUp, got.DroppedOff, got.Expired)
	}
	if got.SimEndTime != 900 {
		t.Errorf("sim_end_time: got %d, want 900", got.SimEndTime)
	}
	if got.TripTime.Mean != 300 {
		t.Errorf("trip_time.mean: got %f, want 300", got.TripTime.Mean)
	}
	if got.ExpirationRate != 0.5 {
		t.Errorf("expiration_rate: got %f, want 0.5", got.ExpirationRate)
	}
}

func TestSaveResults_OverwritesExistingFile(t *testing.T) {
	// GIVEN a results file left by a previous run
	outputPath := filepath.Join(t.TempDir(), "results.json")
	if err := os.WriteFile(outputPath, []byte(`{"agents": 99, "padding": "................................"}`), 0644); err != nil {
		t.Fatal(err)
	}

	// WHEN an empty run is saved over it
	m := NewMetrics()
	m.TotalAgents = 3
	if err := m.SaveResults(outputPath); err != nil {
		t.Fatalf("SaveResults: %v", err)
	}

	// THEN the old content is gone
	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	var got Summary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not valid JSON after truncation: %v", err)
	}
	if got.Agents != 3 {
		t.Errorf("agents: got %d, want 3", got.Agents)
	}
}

func TestSaveResults_BadPath(t *testing.T) {
	m := NewMetrics()
	if err := m.SaveResults(filepath.Join(t.TempDir(), "missing", "results.json")); err == nil {
		t.Error("expected error for a path in a missing directory")
	}
}
