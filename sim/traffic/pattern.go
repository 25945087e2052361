// Package traffic models time-of-day traffic as a stepped speed multiplier
// and integrates it to produce dynamic travel times and distances.
package traffic

import (
	"fmt"
	"math"
)

// Sample is the speed factor that applies from EpochStart for one step.
type Sample struct {
	EpochStart  int64
	SpeedFactor float64
}

// Pattern is a step function of speed factors. Before the first sample the
// first factor applies; from the last sample on the last factor applies.
type Pattern struct {
	step    int64
	samples []Sample
}

// NewPattern creates an empty pattern with the given step in seconds.
func NewPattern(step int64) *Pattern {
	return &Pattern{step: step}
}

// Step returns the sample spacing in seconds.
func (p *Pattern) Step() int64 { return p.step }

// Len returns the number of samples.
func (p *Pattern) Len() int { return len(p.samples) }

// Samples returns a copy of the samples.
func (p *Pattern) Samples() []Sample { return append([]Sample(nil), p.samples...) }

// AddSample appends a sample. Samples must be contiguous and have a positive factor.
func (p *Pattern) AddSample(epochStart int64, factor float64) error {
	if p.step <= 0 {
		return fmt.Errorf("traffic pattern step must be > 0, got %d", p.step)
	}
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return fmt.Errorf("speed factor at %d must be finite and > 0, got %v", epochStart, factor)
	}
	if n := len(p.samples); n > 0 {
		if want := p.samples[n-1].EpochStart + p.step; epochStart != want {
			return fmt.Errorf("sample at %d is not contiguous, expected epoch %d", epochStart, want)
		}
	}
	p.samples = append(p.samples, Sample{EpochStart: epochStart, SpeedFactor: factor})
	return nil
}

func (p *Pattern) first() int64 { return p.samples[0].EpochStart }
func (p *Pattern) last() int64  { return p.samples[len(p.samples)-1].EpochStart }

// SpeedFactor returns the multiplier in effect at time t. An empty pattern is neutral.
func (p *Pattern) SpeedFactor(t float64) float64 {
	if len(p.samples) == 0 {
		return 1
	}
	if t < float64(p.first()) {
		return p.samples[0].SpeedFactor
	}
	if t >= float64(p.last()) {
		return p.samples[len(p.samples)-1].SpeedFactor
	}
	return p.samples[p.index(t)].SpeedFactor
}

func (p *Pattern) index(t float64) int {
	return int(math.Floor((t - float64(p.first())) / float64(p.step)))
}

// windowEnd returns when the factor in effect at t next changes, +Inf if never.
func (p *Pattern) windowEnd(t float64) float64 {
	if len(p.samples) == 0 || t >= float64(p.last()) {
		return math.Inf(1)
	}
	if t < float64(p.first()) {
		return float64(p.first())
	}
	return float64(p.first() + int64(p.index(t)+1)*p.step)
}

// ForwardTravelTime returns how long it takes to cover distance starting at
// time t with base speed scaled by the factor in effect along the way.
func (p *Pattern) ForwardTravelTime(t, speed, distance float64) float64 {
	if distance <= 0 {
		return 0
	}
	elapsed, now, remaining := 0.0, t, distance
	for {
		v := speed * p.SpeedFactor(now)
		end := p.windowEnd(now)
		span := end - now
		if math.IsInf(end, 1) || v*span >= remaining {
			return elapsed + remaining/v
		}
		remaining -= v * span
		elapsed += span
		now = end
	}
}

// TravelDistance returns the distance covered in travelTime starting at t,
// capped at maxDistance, and the time actually spent. The time is shorter
// than travelTime only when maxDistance is reached first.
func (p *Pattern) TravelDistance(t, speed, travelTime, maxDistance float64) (distance, elapsed float64) {
	now := t
	for elapsed < travelTime && distance < maxDistance {
		v := speed * p.SpeedFactor(now)
		span := math.Min(p.windowEnd(now)-now, travelTime-elapsed)
		if distance+v*span >= maxDistance {
			elapsed += (maxDistance - distance) / v
			return maxDistance, elapsed
		}
		distance += v * span
		elapsed += span
		now += span
	}
	return distance, elapsed
}
