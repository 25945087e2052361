package traffic

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Bounds applied to estimated speed factors.
const (
	MinFactor = 0.05
	MaxFactor = 5.0
)

// TripSample is one observed trip: when it started, how long the static
// road speeds say it should take, and how long it actually took.
type TripSample struct {
	Start      int64
	StaticTime float64
	ActualTime float64
}

// Estimate derives a pattern from observed trips. The factor of each epoch is
// Σ static time / Σ actual time over trips starting in [epoch, epoch+window).
// Epochs without trips carry the previous factor forward.
func Estimate(trips []TripSample, step, window int64) (*Pattern, error) {
	if step <= 0 || window <= 0 {
		return nil, fmt.Errorf("step and window must be > 0, got step=%d window=%d", step, window)
	}
	trips = lo.Filter(trips, func(tr TripSample, _ int) bool {
		return tr.ActualTime > 0 && tr.StaticTime > 0
	})
	if len(trips) == 0 {
		return nil, fmt.Errorf("no trips with positive static and actual time")
	}
	slices.SortStableFunc(trips, func(a, b TripSample) int { return cmp.Compare(a.Start, b.Start) })

	firstEpoch := floorTo(trips[0].Start, step)
	lastEpoch := floorTo(trips[len(trips)-1].Start, step)

	p := NewPattern(step)
	factor := 1.0
	begin, end := 0, 0 // trips[begin:end] start inside the window
	for epoch := firstEpoch; epoch <= lastEpoch; epoch += step {
		for begin < len(trips) && trips[begin].Start < epoch {
			begin++
		}
		if end < begin {
			end = begin
		}
		for end < len(trips) && trips[end].Start < epoch+window {
			end++
		}
		if end > begin {
			var static, actual float64
			for _, tr := range trips[begin:end] {
				static += tr.StaticTime
				actual += tr.ActualTime
			}
			factor = lo.Clamp(static/actual, MinFactor, MaxFactor)
		}
		if err := p.AddSample(epoch, factor); err != nil {
			return nil, err
		}
	}
	logrus.Infof("Estimated traffic pattern: %d epochs of %ds from %d trips", p.Len(), step, len(trips))
	return p, nil
}

func floorTo(t, step int64) int64 {
	r := t % step
	if r < 0 {
		r += step
	}
	return t - r
}
