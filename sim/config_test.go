package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleet-sim/fleet-sim/sim/trace"
)

func TestSimConfig_Validate(t *testing.T) {
	valid := SimConfig{Seed: 7, NumAgents: 3, MaxLifetime: 600}
	tests := []struct {
		name    string
		mutate  func(c *SimConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*SimConfig) {}},
		{name: "explicit end time", mutate: func(c *SimConfig) { c.EndTime = 3600 }},
		{name: "no agents", mutate: func(c *SimConfig) { c.NumAgents = 0 }, wantErr: "number of agents"},
		{name: "zero lifetime", mutate: func(c *SimConfig) { c.MaxLifetime = 0 }, wantErr: "max lifetime"},
		{name: "negative end time", mutate: func(c *SimConfig) { c.EndTime = -1 }, wantErr: "end time"},
		{name: "negative workers", mutate: func(c *SimConfig) { c.PathTableWorkers = -2 }, wantErr: "workers"},
		{name: "unknown trace level", mutate: func(c *SimConfig) { c.Trace.Level = "verbose" }, wantErr: "trace level"},
		{name: "decisions trace", mutate: func(c *SimConfig) { c.Trace.Level = trace.TraceLevelDecisions }},
		{
			name:    "dynamic without step",
			mutate:  func(c *SimConfig) { c.Traffic = TrafficConfig{Dynamic: true, Window: 900} },
			wantErr: "traffic step",
		},
		{
			name:    "dynamic window shorter than step",
			mutate:  func(c *SimConfig) { c.Traffic = TrafficConfig{Dynamic: true, Step: 900, Window: 300} },
			wantErr: "traffic window",
		},
		{
			name:   "dynamic ok",
			mutate: func(c *SimConfig) { c.Traffic = TrafficConfig{Dynamic: true, Step: 900, Window: 1800} },
		},
		{
			name:   "static ignores traffic step",
			mutate: func(c *SimConfig) { c.Traffic = TrafficConfig{Step: -5} },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
